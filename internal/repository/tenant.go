package repository

import (
	"context"
	"strings"

	"github.com/straye-as/funnel-api/internal/auth"
	"gorm.io/gorm"
)

// MaxPageSize is the maximum allowed page size for paginated queries
const MaxPageSize = 200

// SortOrder represents the sort direction
type SortOrder string

const (
	SortOrderAsc  SortOrder = "asc"
	SortOrderDesc SortOrder = "desc"
)

// SortConfig holds sorting configuration for list queries
type SortConfig struct {
	Field string    // The field to sort by (API field name)
	Order SortOrder // asc or desc
}

// DefaultSortConfig returns a default sort configuration (updated_at DESC)
func DefaultSortConfig() SortConfig {
	return SortConfig{
		Field: "updatedAt",
		Order: SortOrderDesc,
	}
}

// ParseSortOrder parses a string into SortOrder, defaulting to desc
func ParseSortOrder(s string) SortOrder {
	if strings.ToLower(s) == "asc" {
		return SortOrderAsc
	}
	return SortOrderDesc
}

// BuildOrderClause builds the SQL ORDER BY clause from field mapping and sort config
// fieldMap maps API field names to database column names
// Returns the default sort, newest first, if field is not in whitelist
func BuildOrderClause(config SortConfig, fieldMap map[string]string, defaultColumn string) string {
	column, ok := fieldMap[config.Field]
	if !ok {
		return defaultColumn + " DESC"
	}

	order := "DESC"
	if config.Order == SortOrderAsc {
		order = "ASC"
	}

	return column + " " + order
}

// ApplyBrandFilter restricts a query to the brand scope carried by the request context.
// If no brand scope is set the query is returned unchanged.
func ApplyBrandFilter(ctx context.Context, query *gorm.DB) *gorm.DB {
	return ApplyBrandFilterWithColumn(ctx, query, "brand_id")
}

// ApplyBrandFilterWithColumn applies the brand filter using a specific column name.
// Use this when the column needs table qualification in joins.
func ApplyBrandFilterWithColumn(ctx context.Context, query *gorm.DB, columnName string) *gorm.DB {
	brandID := auth.GetEffectiveBrandFilter(ctx)
	if brandID != nil {
		return query.Where(columnName+" = ?", *brandID)
	}
	return query
}

// pageOffset clamps page and pageSize and returns the matching offset
func pageOffset(page, pageSize int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize, (page - 1) * pageSize
}

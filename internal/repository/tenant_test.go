package repository_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestApplyBrandFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	brandID := uuid.New()
	ctx := auth.WithBrandFilter(context.Background(), &auth.BrandFilter{BrandID: &brandID})

	sql := db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repository.ApplyBrandFilter(ctx, tx.Model(&domain.Lead{})).Find(&[]domain.Lead{})
	})
	assert.Contains(t, sql, "brand_id")
	assert.Contains(t, sql, brandID.String())

	sql = db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return repository.ApplyBrandFilter(context.Background(), tx.Model(&domain.Lead{})).Find(&[]domain.Lead{})
	})
	assert.NotContains(t, sql, "brand_id =")
}

func TestBuildOrderClause(t *testing.T) {
	fields := map[string]string{"name": "name"}

	assert.Equal(t, "name ASC", repository.BuildOrderClause(repository.SortConfig{Field: "name", Order: repository.SortOrderAsc}, fields, "updated_at"))
	assert.Equal(t, "updated_at DESC", repository.BuildOrderClause(repository.SortConfig{Field: "password; DROP", Order: "asc"}, fields, "updated_at"))
	assert.Equal(t, repository.SortOrderAsc, repository.ParseSortOrder("ASC"))
	assert.Equal(t, repository.SortOrderDesc, repository.ParseSortOrder("sideways"))
}

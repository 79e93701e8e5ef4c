package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LeadRepository struct {
	db *gorm.DB
}

func NewLeadRepository(db *gorm.DB) *LeadRepository {
	return &LeadRepository{db: db}
}

// Create inserts a lead, inside tx when one is given
func (r *LeadRepository) Create(ctx context.Context, tx *gorm.DB, lead *domain.Lead) error {
	return conn(ctx, r.db, tx).Omit("CurrentStage").Create(lead).Error
}

func (r *LeadRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	query := r.db.WithContext(ctx).Preload("CurrentStage").Where("id = ?", id)
	query = ApplyBrandFilter(ctx, query)
	if err := query.First(&lead).Error; err != nil {
		return nil, err
	}
	return &lead, nil
}

// GetForUpdate locks the lead row for the rest of tx
func (r *LeadRepository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*domain.Lead, error) {
	var lead domain.Lead
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&lead).Error
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// UpdateStagePointer moves the denormalized current stage. Only call it in the
// transaction that appends the matching ledger row.
func (r *LeadRepository) UpdateStagePointer(ctx context.Context, tx *gorm.DB, id, stageID uuid.UUID, funnelType domain.FunnelType) error {
	result := tx.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"current_stage_id": stageID,
			"current_funnel":   funnelType,
			"updated_at":       tx.NowFunc(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *LeadRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus) error {
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "updated_at": r.db.NowFunc()})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

var leadSortFields = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"status":    "status",
}

// List returns a filtered page of leads and the unpaged total
func (r *LeadRepository) List(ctx context.Context, filters *domain.LeadFilters, page, pageSize int, sort SortConfig) ([]domain.Lead, int64, error) {
	var leads []domain.Lead
	var total int64

	query := r.db.WithContext(ctx).Model(&domain.Lead{})
	query = ApplyBrandFilter(ctx, query)

	if filters != nil {
		if filters.BrandID != nil {
			query = query.Where("brand_id = ?", *filters.BrandID)
		}
		if filters.FunnelID != nil {
			query = query.Where("funnel_id = ?", *filters.FunnelID)
		}
		if filters.Status != nil {
			query = query.Where("status = ?", *filters.Status)
		}
		if filters.StageID != nil {
			query = query.Where("current_stage_id = ?", *filters.StageID)
		}
		if filters.Search != "" {
			term := "%" + strings.ToLower(filters.Search) + "%"
			query = query.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?)", term, term, term)
		}
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	_, pageSize, offset := pageOffset(page, pageSize)
	err := query.Preload("CurrentStage").
		Order(BuildOrderClause(sort, leadSortFields, "updated_at")).
		Offset(offset).Limit(pageSize).
		Find(&leads).Error
	return leads, total, err
}

// QueryLeads returns leads created inside the window for the given scope
func (r *LeadRepository) QueryLeads(ctx context.Context, q analytics.LeadQuery) ([]domain.Lead, error) {
	var leads []domain.Lead
	query := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("created_at >= ? AND created_at <= ?", q.CreatedFrom, q.CreatedTo)
	query = applyScope(query, q.Scope, "brand_id", "funnel_id")
	err := query.Order("created_at ASC, id ASC").Find(&leads).Error
	return leads, err
}

func applyScope(query *gorm.DB, scope analytics.Scope, brandColumn, funnelColumn string) *gorm.DB {
	if scope.BrandID != nil {
		query = query.Where(brandColumn+" = ?", *scope.BrandID)
	}
	if scope.FunnelID != nil {
		query = query.Where(funnelColumn+" = ?", *scope.FunnelID)
	}
	return query
}

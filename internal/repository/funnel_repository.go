package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

type FunnelRepository struct {
	db *gorm.DB
}

func NewFunnelRepository(db *gorm.DB) *FunnelRepository {
	return &FunnelRepository{db: db}
}

func (r *FunnelRepository) Create(ctx context.Context, funnel *domain.Funnel) error {
	return r.db.WithContext(ctx).Create(funnel).Error
}

func (r *FunnelRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Funnel, error) {
	var funnel domain.Funnel
	err := r.db.WithContext(ctx).Preload("Brand").Where("id = ?", id).First(&funnel).Error
	if err != nil {
		return nil, err
	}
	return &funnel, nil
}

func (r *FunnelRepository) Update(ctx context.Context, funnel *domain.Funnel) error {
	return r.db.WithContext(ctx).Omit("Brand").Save(funnel).Error
}

// ListByBrand returns a brand's funnels, default funnel first
func (r *FunnelRepository) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Funnel, error) {
	var funnels []domain.Funnel
	err := r.db.WithContext(ctx).
		Where("brand_id = ?", brandID).
		Order("is_default DESC, name ASC").
		Find(&funnels).Error
	return funnels, err
}

// GetDefault returns the brand's default funnel, or gorm.ErrRecordNotFound
func (r *FunnelRepository) GetDefault(ctx context.Context, tx *gorm.DB, brandID uuid.UUID) (*domain.Funnel, error) {
	var funnel domain.Funnel
	err := conn(ctx, r.db, tx).
		Where("brand_id = ? AND is_default = ? AND is_active = ?", brandID, true, true).
		First(&funnel).Error
	if err != nil {
		return nil, err
	}
	return &funnel, nil
}

// SetDefault clears the brand's previous default and marks funnelID. Call inside a transaction.
func (r *FunnelRepository) SetDefault(ctx context.Context, tx *gorm.DB, brandID, funnelID uuid.UUID) error {
	db := conn(ctx, r.db, tx)
	if err := db.Model(&domain.Funnel{}).
		Where("brand_id = ? AND id <> ?", brandID, funnelID).
		Update("is_default", false).Error; err != nil {
		return err
	}
	result := db.Model(&domain.Funnel{}).
		Where("brand_id = ? AND id = ?", brandID, funnelID).
		Update("is_default", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementLeadCount bumps the denormalized lead counter
func (r *FunnelRepository) IncrementLeadCount(ctx context.Context, tx *gorm.DB, funnelID uuid.UUID) error {
	return conn(ctx, r.db, tx).Model(&domain.Funnel{}).
		Where("id = ?", funnelID).
		UpdateColumn("total_leads_count", gorm.Expr("total_leads_count + ?", 1)).Error
}

// conn picks the caller's transaction when one is given
func conn(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

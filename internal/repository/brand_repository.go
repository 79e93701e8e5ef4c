package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

type BrandRepository struct {
	db *gorm.DB
}

func NewBrandRepository(db *gorm.DB) *BrandRepository {
	return &BrandRepository{db: db}
}

func (r *BrandRepository) Create(ctx context.Context, brand *domain.Brand) error {
	return r.db.WithContext(ctx).Create(brand).Error
}

func (r *BrandRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Brand, error) {
	var brand domain.Brand
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&brand).Error
	if err != nil {
		return nil, err
	}
	return &brand, nil
}

func (r *BrandRepository) Update(ctx context.Context, brand *domain.Brand) error {
	return r.db.WithContext(ctx).Save(brand).Error
}

// List returns brands ordered by name. activeOnly hides deactivated brands.
func (r *BrandRepository) List(ctx context.Context, activeOnly bool) ([]domain.Brand, error) {
	var brands []domain.Brand
	query := r.db.WithContext(ctx).Model(&domain.Brand{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	query = ApplyBrandFilterWithColumn(ctx, query, "id")
	err := query.Order("name ASC").Find(&brands).Error
	return brands, err
}

// ListActiveIDs is used by background jobs that iterate every live brand
func (r *BrandRepository) ListActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.Brand{}).
		Where("is_active = ?", true).
		Order("name ASC").
		Pluck("id", &ids).Error
	return ids, err
}

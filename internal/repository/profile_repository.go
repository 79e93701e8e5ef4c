package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"gorm.io/gorm"
)

type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Create(ctx context.Context, tx *gorm.DB, profile *domain.Profile) error {
	profile.Email = strings.ToLower(profile.Email)
	return conn(ctx, r.db, tx).Create(profile).Error
}

func (r *ProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *ProfileRepository) GetByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var profile domain.Profile
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// List returns every profile ordered by email
func (r *ProfileRepository) List(ctx context.Context) ([]domain.Profile, error) {
	var profiles []domain.Profile
	err := r.db.WithContext(ctx).Order("email ASC").Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) Update(ctx context.Context, tx *gorm.DB, profile *domain.Profile) error {
	return conn(ctx, r.db, tx).Save(profile).Error
}

func (r *ProfileRepository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	result := conn(ctx, r.db, tx).Delete(&domain.Profile{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

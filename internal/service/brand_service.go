package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultBrandColor = "#1F6FEB"

type BrandService struct {
	brandRepo   *repository.BrandRepository
	profileRepo *repository.ProfileRepository
	logger      *zap.Logger
}

func NewBrandService(brandRepo *repository.BrandRepository, profileRepo *repository.ProfileRepository, logger *zap.Logger) *BrandService {
	return &BrandService{brandRepo: brandRepo, profileRepo: profileRepo, logger: logger}
}

func (s *BrandService) List(ctx context.Context, includeInactive bool) ([]domain.BrandDTO, error) {
	brands, err := s.brandRepo.List(ctx, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list brands: %w", err)
	}
	dtos := make([]domain.BrandDTO, len(brands))
	for i := range brands {
		dtos[i] = mapper.ToBrandDTO(&brands[i])
	}
	return dtos, nil
}

func (s *BrandService) GetByID(ctx context.Context, id uuid.UUID) (*domain.BrandDTO, error) {
	brand, err := s.brandRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrBrandNotFound, "failed to get brand")
	}
	dto := mapper.ToBrandDTO(brand)
	return &dto, nil
}

// Create makes the calling user the brand owner
func (s *BrandService) Create(ctx context.Context, req *domain.CreateBrandRequest) (*domain.BrandDTO, error) {
	brand := &domain.Brand{
		Name:     req.Name,
		Color:    req.Color,
		LogoURL:  req.LogoURL,
		IsActive: true,
	}
	if brand.Color == "" {
		brand.Color = defaultBrandColor
	}
	if userCtx, ok := auth.FromContext(ctx); ok && userCtx.AuthMethod == "jwt" {
		ownerID := userCtx.UserID
		brand.OwnerID = &ownerID
	}

	if err := s.brandRepo.Create(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to create brand: %w", err)
	}

	s.logger.Info("brand created", zap.String("brand_id", brand.ID.String()), zap.String("name", brand.Name))
	dto := mapper.ToBrandDTO(brand)
	return &dto, nil
}

func (s *BrandService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateBrandRequest) (*domain.BrandDTO, error) {
	brand, err := s.brandRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrBrandNotFound, "failed to get brand")
	}

	if req.IsActive != nil && !*req.IsActive && brand.IsActive {
		if err := s.requireOwnerOrAdmin(ctx, brand); err != nil {
			return nil, err
		}
	}

	brand.Name = req.Name
	if req.Color != "" {
		brand.Color = req.Color
	}
	brand.LogoURL = req.LogoURL
	if req.IsActive != nil {
		brand.IsActive = *req.IsActive
	}

	if err := s.brandRepo.Update(ctx, brand); err != nil {
		return nil, fmt.Errorf("failed to update brand: %w", err)
	}
	dto := mapper.ToBrandDTO(brand)
	return &dto, nil
}

// Deactivate soft-deletes a brand. Only its owner or an admin may do this.
func (s *BrandService) Deactivate(ctx context.Context, id uuid.UUID) error {
	brand, err := s.brandRepo.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrBrandNotFound, "failed to get brand")
	}
	if err := s.requireOwnerOrAdmin(ctx, brand); err != nil {
		return err
	}

	brand.IsActive = false
	if err := s.brandRepo.Update(ctx, brand); err != nil {
		return fmt.Errorf("failed to deactivate brand: %w", err)
	}
	s.logger.Info("brand deactivated", zap.String("brand_id", brand.ID.String()))
	return nil
}

func (s *BrandService) requireOwnerOrAdmin(ctx context.Context, brand *domain.Brand) error {
	userCtx, ok := auth.FromContext(ctx)
	if !ok {
		return ErrForbidden
	}
	if userCtx.AuthMethod == "api_key" {
		return nil
	}
	if brand.OwnerID != nil && *brand.OwnerID == userCtx.UserID {
		return nil
	}

	profile, err := s.profileRepo.GetByID(ctx, userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("failed to load profile: %w", err)
	}
	if profile.IsActive && profile.Role == domain.RoleAdmin {
		return nil
	}
	return ErrForbidden
}

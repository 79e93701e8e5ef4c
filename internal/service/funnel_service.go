package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FunnelService struct {
	funnelRepo *repository.FunnelRepository
	brandRepo  *repository.BrandRepository
	logger     *zap.Logger
	db         *gorm.DB
}

func NewFunnelService(funnelRepo *repository.FunnelRepository, brandRepo *repository.BrandRepository, logger *zap.Logger, db *gorm.DB) *FunnelService {
	return &FunnelService{funnelRepo: funnelRepo, brandRepo: brandRepo, logger: logger, db: db}
}

func (s *FunnelService) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.FunnelDTO, error) {
	if _, err := s.brandRepo.GetByID(ctx, brandID); err != nil {
		return nil, notFound(err, ErrBrandNotFound, "failed to get brand")
	}
	funnels, err := s.funnelRepo.ListByBrand(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("failed to list funnels: %w", err)
	}
	dtos := make([]domain.FunnelDTO, len(funnels))
	for i := range funnels {
		dtos[i] = mapper.ToFunnelDTO(&funnels[i])
	}
	return dtos, nil
}

func (s *FunnelService) GetByID(ctx context.Context, id uuid.UUID) (*domain.FunnelDTO, error) {
	funnel, err := s.funnelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrFunnelNotFound, "failed to get funnel")
	}
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

// Create adds a funnel to a brand. The brand's first funnel becomes its default.
func (s *FunnelService) Create(ctx context.Context, req *domain.CreateFunnelRequest) (*domain.FunnelDTO, error) {
	brand, err := s.brandRepo.GetByID(ctx, req.BrandID)
	if err != nil {
		return nil, notFound(err, ErrBrandNotFound, "failed to get brand")
	}
	if !brand.IsActive {
		return nil, fmt.Errorf("%w: brand is inactive", ErrInvalidInput)
	}

	funnel := &domain.Funnel{
		BrandID:     brand.ID,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Omit("Brand").Create(funnel).Error; err != nil {
			return fmt.Errorf("failed to create funnel: %w", err)
		}

		makeDefault := req.IsDefault
		if !makeDefault {
			_, err := s.funnelRepo.GetDefault(ctx, tx, brand.ID)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				makeDefault = true
			} else if err != nil {
				return err
			}
		}
		if makeDefault {
			funnel.IsDefault = true
			return s.funnelRepo.SetDefault(ctx, tx, brand.ID, funnel.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("funnel created",
		zap.String("funnel_id", funnel.ID.String()),
		zap.String("brand_id", brand.ID.String()),
		zap.Bool("is_default", funnel.IsDefault),
	)
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

func (s *FunnelService) Update(ctx context.Context, id uuid.UUID, req *domain.UpdateFunnelRequest) (*domain.FunnelDTO, error) {
	funnel, err := s.funnelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrFunnelNotFound, "failed to get funnel")
	}

	funnel.Name = req.Name
	funnel.Description = req.Description
	if req.IsActive != nil {
		if !*req.IsActive && funnel.IsDefault {
			return nil, fmt.Errorf("%w: the default funnel cannot be deactivated", ErrInvalidInput)
		}
		funnel.IsActive = *req.IsActive
	}

	if err := s.funnelRepo.Update(ctx, funnel); err != nil {
		return nil, fmt.Errorf("failed to update funnel: %w", err)
	}
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

// SetDefault makes id the only default funnel of its brand
func (s *FunnelService) SetDefault(ctx context.Context, id uuid.UUID) (*domain.FunnelDTO, error) {
	funnel, err := s.funnelRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrFunnelNotFound, "failed to get funnel")
	}
	if !funnel.IsActive {
		return nil, fmt.Errorf("%w: an inactive funnel cannot be the default", ErrInvalidInput)
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return s.funnelRepo.SetDefault(ctx, tx, funnel.BrandID, funnel.ID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set default funnel: %w", err)
	}

	funnel.IsDefault = true
	dto := mapper.ToFunnelDTO(funnel)
	return &dto, nil
}

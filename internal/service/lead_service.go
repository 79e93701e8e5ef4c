package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ledgerTick is the smallest step between two ledger rows of one lead; Postgres
// timestamps have microsecond resolution.
const ledgerTick = time.Microsecond

// LeadService owns every write to the stage ledger. A lead's current stage pointer
// and its ledger always change in the same transaction.
type LeadService struct {
	leadRepo    *repository.LeadRepository
	historyRepo *repository.LeadStageHistoryRepository
	stageRepo   *repository.StageRepository
	funnelRepo  *repository.FunnelRepository
	brandRepo   *repository.BrandRepository
	logger      *zap.Logger
	db          *gorm.DB
	now         func() time.Time
}

func NewLeadService(
	leadRepo *repository.LeadRepository,
	historyRepo *repository.LeadStageHistoryRepository,
	stageRepo *repository.StageRepository,
	funnelRepo *repository.FunnelRepository,
	brandRepo *repository.BrandRepository,
	logger *zap.Logger,
	db *gorm.DB,
) *LeadService {
	return &LeadService{
		leadRepo:    leadRepo,
		historyRepo: historyRepo,
		stageRepo:   stageRepo,
		funnelRepo:  funnelRepo,
		brandRepo:   brandRepo,
		logger:      logger,
		db:          db,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the service clock. Used by tests.
func (s *LeadService) WithClock(now func() time.Time) *LeadService {
	cp := *s
	cp.now = now
	return &cp
}

// Create places a new lead on the first stage of its pipeline and writes the
// opening ledger row
func (s *LeadService) Create(ctx context.Context, req *domain.CreateLeadRequest) (*domain.LeadDTO, error) {
	brand, err := s.brandRepo.GetByID(ctx, req.BrandID)
	if err != nil {
		return nil, notFound(err, ErrBrandNotFound, "failed to get brand")
	}
	if !brand.IsActive {
		return nil, fmt.Errorf("%w: brand is inactive", ErrInvalidInput)
	}

	funnelType := req.FunnelType
	if funnelType == "" {
		funnelType = domain.FunnelTypeFollowUp
	}

	var funnelID *uuid.UUID
	if req.FunnelID != nil {
		funnel, err := s.funnelRepo.GetByID(ctx, *req.FunnelID)
		if err != nil {
			return nil, notFound(err, ErrFunnelNotFound, "failed to get funnel")
		}
		if funnel.BrandID != brand.ID {
			return nil, fmt.Errorf("%w: funnel belongs to another brand", ErrInvalidInput)
		}
		if !funnel.IsActive {
			return nil, fmt.Errorf("%w: funnel is inactive", ErrInvalidInput)
		}
		funnelID = &funnel.ID
	} else {
		funnel, err := s.funnelRepo.GetDefault(ctx, nil, brand.ID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to get default funnel: %w", err)
		}
		if funnel != nil {
			funnelID = &funnel.ID
		}
	}

	movedBy := actorID(ctx)
	now := s.now()
	lead := &domain.Lead{
		BrandID:       brand.ID,
		FunnelID:      funnelID,
		Phone:         req.Phone,
		Name:          req.Name,
		Email:         req.Email,
		CurrentFunnel: funnelType,
		Status:        domain.LeadStatusActive,
	}
	lead.CreatedAt = now
	lead.UpdatedAt = now

	err = s.db.Transaction(func(tx *gorm.DB) error {
		first, err := s.stageRepo.FirstStage(ctx, tx, funnelType)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrNoStages, funnelType)
		}
		if err != nil {
			return fmt.Errorf("failed to get first stage: %w", err)
		}
		lead.CurrentStageID = first.ID
		lead.CurrentStage = first

		if err := s.leadRepo.Create(ctx, tx, lead); err != nil {
			return fmt.Errorf("failed to create lead: %w", err)
		}
		if err := s.historyRepo.Append(ctx, tx, &domain.LeadStageHistory{
			LeadID:    lead.ID,
			ToStageID: first.ID,
			ToFunnel:  first.FunnelType,
			Reason:    "lead created",
			MovedBy:   movedBy,
			MovedAt:   now,
		}); err != nil {
			return fmt.Errorf("failed to record initial stage: %w", err)
		}
		if funnelID != nil {
			if err := s.funnelRepo.IncrementLeadCount(ctx, tx, *funnelID); err != nil {
				return fmt.Errorf("failed to update funnel lead count: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead created",
		zap.String("lead_id", lead.ID.String()),
		zap.String("brand_id", brand.ID.String()),
		zap.String("stage_id", lead.CurrentStageID.String()),
	)
	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) GetByID(ctx context.Context, id uuid.UUID) (*domain.LeadDTO, error) {
	lead, err := s.leadRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}
	dto := mapper.ToLeadDTO(lead)
	return &dto, nil
}

func (s *LeadService) List(ctx context.Context, filters *domain.LeadFilters, page, pageSize int, sort repository.SortConfig) (*domain.PaginatedResponse, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > repository.MaxPageSize {
		pageSize = repository.MaxPageSize
	}

	leads, total, err := s.leadRepo.List(ctx, filters, page, pageSize, sort)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	dtos := make([]domain.LeadDTO, len(leads))
	for i := range leads {
		dtos[i] = mapper.ToLeadDTO(&leads[i])
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// MoveStage appends a ledger row and moves the current stage pointer atomically.
// moved_at strictly increases per lead, even if the clock goes backwards, so ledger
// order is fully determined by moved_at.
func (s *LeadService) MoveStage(ctx context.Context, id uuid.UUID, req *domain.MoveLeadStageRequest) (*domain.LeadDTO, error) {
	target, err := s.stageRepo.GetByID(ctx, req.StageID)
	if err != nil {
		return nil, notFound(err, ErrStageNotFound, "failed to get stage")
	}
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}

	movedBy := actorID(ctx)
	var from domain.Stage

	err = s.db.Transaction(func(tx *gorm.DB) error {
		lead, err := s.leadRepo.GetForUpdate(ctx, tx, id)
		if err != nil {
			return notFound(err, ErrLeadNotFound, "failed to lock lead")
		}
		if lead.CurrentStageID == target.ID {
			return ErrSameStage
		}

		movedAt := s.now()
		last, err := s.historyRepo.Latest(ctx, tx, id)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to read ledger: %w", err)
		}
		if last != nil && !movedAt.After(last.MovedAt) {
			movedAt = last.MovedAt.Add(ledgerTick)
		}

		fromID, fromFunnel := lead.CurrentStageID, lead.CurrentFunnel
		from = domain.Stage{FunnelType: fromFunnel}
		from.ID = fromID

		if err := s.historyRepo.Append(ctx, tx, &domain.LeadStageHistory{
			LeadID:      id,
			FromStageID: &fromID,
			FromFunnel:  &fromFunnel,
			ToStageID:   target.ID,
			ToFunnel:    target.FunnelType,
			Reason:      req.Reason,
			MovedBy:     movedBy,
			MovedAt:     movedAt,
		}); err != nil {
			return fmt.Errorf("failed to record stage move: %w", err)
		}
		return s.leadRepo.UpdateStagePointer(ctx, tx, id, target.ID, target.FunnelType)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("lead moved",
		zap.String("lead_id", id.String()),
		zap.String("from_stage_id", from.ID.String()),
		zap.String("to_stage_id", target.ID.String()),
		zap.String("from_funnel", string(from.FunnelType)),
		zap.String("to_funnel", string(target.FunnelType)),
	)
	return s.GetByID(ctx, id)
}

func (s *LeadService) UpdateStatus(ctx context.Context, id uuid.UUID, req *domain.UpdateLeadStatusRequest) (*domain.LeadDTO, error) {
	if !req.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, req.Status)
	}
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}
	if err := s.leadRepo.UpdateStatus(ctx, id, req.Status); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to update lead status")
	}
	return s.GetByID(ctx, id)
}

// History returns the lead's ledger, oldest first
func (s *LeadService) History(ctx context.Context, id uuid.UUID) ([]domain.LeadStageHistoryDTO, error) {
	if _, err := s.leadRepo.GetByID(ctx, id); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}
	entries, err := s.historyRepo.ListByLead(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list lead history: %w", err)
	}
	dtos := make([]domain.LeadStageHistoryDTO, len(entries))
	for i := range entries {
		dtos[i] = mapper.ToLeadStageHistoryDTO(&entries[i])
	}
	return dtos, nil
}

// actorID returns the authenticated user, or nil for service calls
func actorID(ctx context.Context) *uuid.UUID {
	userCtx, ok := auth.FromContext(ctx)
	if !ok || userCtx.AuthMethod != "jwt" {
		return nil
	}
	id := userCtx.UserID
	return &id
}

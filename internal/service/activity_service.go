package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
)

// ActivityService records the interaction log attached to leads
type ActivityService struct {
	activityRepo *repository.LeadActivityRepository
	leadRepo     *repository.LeadRepository
	logger       *zap.Logger
}

func NewActivityService(activityRepo *repository.LeadActivityRepository, leadRepo *repository.LeadRepository, logger *zap.Logger) *ActivityService {
	return &ActivityService{activityRepo: activityRepo, leadRepo: leadRepo, logger: logger}
}

// Create logs an activity. OccurredAt defaults to now and may not be in the future.
func (s *ActivityService) Create(ctx context.Context, leadID uuid.UUID, req *domain.CreateActivityRequest) (*domain.LeadActivityDTO, error) {
	if _, err := s.leadRepo.GetByID(ctx, leadID); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}

	now := time.Now().UTC()
	occurredAt := now
	if req.OccurredAt != nil && *req.OccurredAt != "" {
		t, err := time.Parse(time.RFC3339, *req.OccurredAt)
		if err != nil {
			return nil, fmt.Errorf("%w: occurredAt must be RFC 3339", ErrInvalidInput)
		}
		if t.After(now.Add(time.Minute)) {
			return nil, fmt.Errorf("%w: occurredAt is in the future", ErrInvalidInput)
		}
		occurredAt = t.UTC()
	}

	activity := &domain.LeadActivity{
		LeadID:     leadID,
		Type:       req.Type,
		Title:      req.Title,
		Notes:      req.Notes,
		CreatedBy:  actorID(ctx),
		OccurredAt: occurredAt,
	}
	if err := s.activityRepo.Create(ctx, activity); err != nil {
		return nil, fmt.Errorf("failed to create activity: %w", err)
	}

	s.logger.Debug("activity logged",
		zap.String("lead_id", leadID.String()),
		zap.String("type", string(activity.Type)),
	)
	dto := mapper.ToLeadActivityDTO(activity)
	return &dto, nil
}

func (s *ActivityService) ListByLead(ctx context.Context, leadID uuid.UUID, page, pageSize int) (*domain.PaginatedResponse, error) {
	if _, err := s.leadRepo.GetByID(ctx, leadID); err != nil {
		return nil, notFound(err, ErrLeadNotFound, "failed to get lead")
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}

	activities, total, err := s.activityRepo.ListByLead(ctx, leadID, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	dtos := make([]domain.LeadActivityDTO, len(activities))
	for i := range activities {
		dtos[i] = mapper.ToLeadActivityDTO(&activities[i])
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

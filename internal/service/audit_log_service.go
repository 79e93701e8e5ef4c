package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AuditLogService records privileged mutations
type AuditLogService struct {
	auditRepo *repository.AuditLogRepository
	logger    *zap.Logger
}

// NewAuditLogService creates a new audit log service
func NewAuditLogService(auditRepo *repository.AuditLogRepository, logger *zap.Logger) *AuditLogService {
	return &AuditLogService{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

// LogEntry represents the input for creating an audit log entry
type LogEntry struct {
	Action     domain.AuditAction
	EntityType string
	EntityID   uuid.UUID
	Details    interface{}
}

// Record writes an entry inside tx so the audit row commits or rolls back with
// the mutation it describes
func (s *AuditLogService) Record(ctx context.Context, tx *gorm.DB, actor *auth.Principal, entry LogEntry) error {
	details := "null"
	if entry.Details != nil {
		b, err := json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to encode audit details: %w", err)
		}
		details = string(b)
	}

	log := &domain.AuditLog{
		ActorID:    actor.UserID,
		Action:     entry.Action,
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    details,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.auditRepo.Create(ctx, tx, log); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	s.logger.Info("audit",
		zap.String("actor_id", actor.UserID.String()),
		zap.String("action", string(entry.Action)),
		zap.String("entity_type", entry.EntityType),
		zap.String("entity_id", entry.EntityID.String()),
	)
	return nil
}

// AuditLogDTO is the API shape of an audit entry
type AuditLogDTO struct {
	ID         uuid.UUID          `json:"id"`
	ActorID    uuid.UUID          `json:"actorId"`
	Action     domain.AuditAction `json:"action"`
	EntityType string             `json:"entityType"`
	EntityID   uuid.UUID          `json:"entityId"`
	Details    json.RawMessage    `json:"details,omitempty"`
	CreatedAt  string             `json:"createdAt"`
}

// List returns audit entries, newest first. Admin only.
func (s *AuditLogService) List(ctx context.Context, actor *auth.Principal, filter *repository.AuditLogFilter, page, pageSize int) (*domain.PaginatedResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > repository.MaxPageSize {
		pageSize = 20
	}

	logs, total, err := s.auditRepo.List(ctx, filter, page, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}

	dtos := make([]AuditLogDTO, len(logs))
	for i, l := range logs {
		dtos[i] = AuditLogDTO{
			ID:         l.ID,
			ActorID:    l.ActorID,
			Action:     l.Action,
			EntityType: l.EntityType,
			EntityID:   l.EntityID,
			CreatedAt:  l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if l.Details != "" && l.Details != "null" {
			dtos[i].Details = json.RawMessage(l.Details)
		}
	}
	return &domain.PaginatedResponse{
		Data:       dtos,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

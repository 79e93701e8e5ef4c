package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/mapper"
	"github.com/straye-as/funnel-api/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const entityProfile = "profile"

// AdminService manages user profiles. Every method re-checks the principal's role
// even though the router already did, so the service is safe to call from jobs
// and tests without the HTTP layer.
type AdminService struct {
	profileRepo *repository.ProfileRepository
	audit       *AuditLogService
	logger      *zap.Logger
	db          *gorm.DB
	bcryptCost  int
}

func NewAdminService(profileRepo *repository.ProfileRepository, audit *AuditLogService, logger *zap.Logger, db *gorm.DB) *AdminService {
	return &AdminService{
		profileRepo: profileRepo,
		audit:       audit,
		logger:      logger,
		db:          db,
		bcryptCost:  bcrypt.DefaultCost,
	}
}

// WithBcryptCost overrides the hashing cost. Tests use bcrypt.MinCost.
func (s *AdminService) WithBcryptCost(cost int) *AdminService {
	cp := *s
	cp.bcryptCost = cost
	return &cp
}

func requireAdmin(p *auth.Principal) error {
	if p == nil || !p.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

func (s *AdminService) ListUsers(ctx context.Context, actor *auth.Principal) ([]domain.ProfileDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	profiles, err := s.profileRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	dtos := make([]domain.ProfileDTO, len(profiles))
	for i := range profiles {
		dtos[i] = mapper.ToProfileDTO(&profiles[i])
	}
	return dtos, nil
}

func (s *AdminService) CreateUser(ctx context.Context, actor *auth.Principal, req *domain.CreateUserRequest) (*domain.ProfileDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if !req.Role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, req.Role)
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.profileRepo.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	profile := &domain.Profile{
		Email:        email,
		FullName:     req.FullName,
		Role:         req.Role,
		PasswordHash: string(hash),
		IsActive:     true,
	}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.profileRepo.Create(ctx, tx, profile); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, LogEntry{
			Action:     domain.AuditActionCreate,
			EntityType: entityProfile,
			EntityID:   profile.ID,
			Details:    map[string]interface{}{"email": profile.Email, "role": profile.Role},
		})
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToProfileDTO(profile)
	return &dto, nil
}

func (s *AdminService) UpdateUser(ctx context.Context, actor *auth.Principal, id uuid.UUID, req *domain.UpdateUserRequest) (*domain.ProfileDTO, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound, "failed to get user")
	}

	changes := map[string]interface{}{}
	if req.FullName != nil {
		profile.FullName = *req.FullName
		changes["fullName"] = *req.FullName
	}
	if req.Role != nil {
		if !req.Role.IsValid() {
			return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, *req.Role)
		}
		profile.Role = *req.Role
		changes["role"] = *req.Role
	}
	if req.IsActive != nil {
		profile.IsActive = *req.IsActive
		changes["isActive"] = *req.IsActive
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.profileRepo.Update(ctx, tx, profile); err != nil {
			return fmt.Errorf("failed to update user: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, LogEntry{
			Action:     domain.AuditActionUpdate,
			EntityType: entityProfile,
			EntityID:   profile.ID,
			Details:    changes,
		})
	})
	if err != nil {
		return nil, err
	}

	dto := mapper.ToProfileDTO(profile)
	return &dto, nil
}

// DeleteUser removes a profile. Deleting yourself is a policy error, reported
// separately from authorization failures.
func (s *AdminService) DeleteUser(ctx context.Context, actor *auth.Principal, id uuid.UUID) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if id == actor.UserID {
		s.logger.Warn("admin attempted to delete own account", zap.String("user_id", id.String()))
		return ErrSelfDeletion
	}

	profile, err := s.profileRepo.GetByID(ctx, id)
	if err != nil {
		return notFound(err, ErrUserNotFound, "failed to get user")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.profileRepo.Delete(ctx, tx, id); err != nil {
			return notFound(err, ErrUserNotFound, "failed to delete user")
		}
		return s.audit.Record(ctx, tx, actor, LogEntry{
			Action:     domain.AuditActionDelete,
			EntityType: entityProfile,
			EntityID:   id,
			Details:    map[string]interface{}{"email": profile.Email},
		})
	})
}

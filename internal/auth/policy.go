package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TokenValidator turns a raw bearer token into an unverified-role identity
type TokenValidator interface {
	ValidateToken(token string) (*UserContext, error)
}

// ProfileLookup reads profiles from the database
type ProfileLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
}

// Authorizer is the admin gate. The role it checks always comes from the stored
// profile, never from token claims.
type Authorizer struct {
	tokens   TokenValidator
	profiles ProfileLookup
	logger   *zap.Logger
}

func NewAuthorizer(tokens TokenValidator, profiles ProfileLookup, logger *zap.Logger) *Authorizer {
	return &Authorizer{tokens: tokens, profiles: profiles, logger: logger}
}

// Authorize verifies token and requires the subject's stored role to be admin
func (a *Authorizer) Authorize(ctx context.Context, token string) (*Principal, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	userCtx, err := a.tokens.ValidateToken(token)
	if err != nil {
		return nil, err
	}
	return a.AuthorizeUser(ctx, userCtx.UserID)
}

// Resolve loads the principal for an already authenticated user id
func (a *Authorizer) Resolve(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	profile, err := a.profiles.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	if !profile.IsActive {
		return nil, ErrProfileNotFound
	}
	return &Principal{UserID: profile.ID, Email: profile.Email, Role: profile.Role}, nil
}

// AuthorizeUser resolves userID and requires the admin role
func (a *Authorizer) AuthorizeUser(ctx context.Context, userID uuid.UUID) (*Principal, error) {
	principal, err := a.Resolve(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !principal.IsAdmin() {
		a.logger.Warn("admin access denied",
			zap.String("user_id", principal.UserID.String()),
			zap.String("stored_role", string(principal.Role)),
		)
		return nil, ErrForbidden
	}
	return principal, nil
}

package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/domain"
)

// UserContext holds authenticated user information.
// ClaimedRole is whatever the token carried and is never used for authorization;
// privileged routes resolve the stored profile role through Authorizer.
type UserContext struct {
	UserID      uuid.UUID
	DisplayName string
	Email       string
	ClaimedRole string
	AuthMethod  string
	Token       string
}

// Principal is a caller whose role was read from the profiles table
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   domain.UserRole
}

// IsAdmin reports whether the stored role is admin
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == domain.RoleAdmin
}

type contextKey string

const userContextKey contextKey = "userContext"
const principalKey contextKey = "principal"
const brandFilterKey contextKey = "brandFilter"

// WithUserContext adds user context to the context
func WithUserContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// FromContext extracts user context from the context
func FromContext(ctx context.Context) (*UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	return user, ok
}

// WithPrincipal stores a verified principal on the context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the principal placed by RequireAdmin
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// BrandFilter is the effective brand scope for a request, set by the brand scope
// middleware from the X-Brand-ID header or brandId query parameter
type BrandFilter struct {
	BrandID *uuid.UUID
}

// WithBrandFilter adds brand filter to the context
func WithBrandFilter(ctx context.Context, filter *BrandFilter) context.Context {
	return context.WithValue(ctx, brandFilterKey, filter)
}

// BrandFilterFromContext extracts brand filter from the context
func BrandFilterFromContext(ctx context.Context) (*BrandFilter, bool) {
	filter, ok := ctx.Value(brandFilterKey).(*BrandFilter)
	return filter, ok
}

// GetEffectiveBrandFilter returns the brand to filter queries by, or nil for all brands
func GetEffectiveBrandFilter(ctx context.Context) *uuid.UUID {
	if filter, ok := BrandFilterFromContext(ctx); ok && filter != nil {
		return filter.BrandID
	}
	return nil
}

package auth_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testSecret = "test-secret-for-hs256-signing-000"

type fakeProfiles map[uuid.UUID]*domain.Profile

func (f fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*domain.Profile, error) {
	if p, ok := f[id]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func signHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func claimsFor(id uuid.UUID, extra map[string]interface{}) jwt.MapClaims {
	c := jwt.MapClaims{
		"sub":   id.String(),
		"email": "user@example.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		c[k] = v
	}
	return c
}

func profile(role domain.UserRole) *domain.Profile {
	p := &domain.Profile{Email: string(role) + "@example.com", Role: role, IsActive: true}
	p.ID = uuid.New()
	return p
}

func newAuthorizer(profiles fakeProfiles) (*auth.Authorizer, *auth.JWTValidator) {
	validator := auth.NewJWTValidator(&config.AuthConfig{JWTSecret: testSecret})
	return auth.NewAuthorizer(validator, profiles, zap.NewNop()), validator
}

func TestAuthorize_AdminProfile(t *testing.T) {
	admin := profile(domain.RoleAdmin)
	authorizer, _ := newAuthorizer(fakeProfiles{admin.ID: admin})

	principal, err := authorizer.Authorize(context.Background(), signHS256(t, claimsFor(admin.ID, nil)))
	require.NoError(t, err)
	assert.Equal(t, admin.ID, principal.UserID)
	assert.Equal(t, domain.RoleAdmin, principal.Role)
}

func TestAuthorize_RoleClaimIsIgnored(t *testing.T) {
	sales := profile(domain.RoleSales)
	authorizer, _ := newAuthorizer(fakeProfiles{sales.ID: sales})

	token := signHS256(t, claimsFor(sales.ID, map[string]interface{}{"role": "admin"}))
	_, err := authorizer.Authorize(context.Background(), token)

	assert.True(t, errors.Is(err, auth.ErrForbidden))
	assert.False(t, errors.Is(err, auth.ErrUnauthorized))
}

func TestAuthorize_Failures(t *testing.T) {
	inactive := profile(domain.RoleAdmin)
	inactive.IsActive = false
	authorizer, _ := newAuthorizer(fakeProfiles{inactive.ID: inactive})

	expired := claimsFor(inactive.ID, map[string]interface{}{"exp": time.Now().Add(-time.Minute).Unix()})
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claimsFor(inactive.ID, nil)).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"missing", "", auth.ErrMissingToken},
		{"garbage", "not.a.jwt", auth.ErrInvalidToken},
		{"wrong key", forged, auth.ErrInvalidToken},
		{"expired", signHS256(t, expired), auth.ErrExpiredToken},
		{"unknown subject", signHS256(t, claimsFor(uuid.New(), nil)), auth.ErrProfileNotFound},
		{"inactive profile", signHS256(t, claimsFor(inactive.ID, nil)), auth.ErrProfileNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := authorizer.Authorize(context.Background(), tt.token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.True(t, errors.Is(err, auth.ErrUnauthorized))
		})
	}
}

func TestJWTValidator_RS256FromJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwks := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"keys": []map[string]string{{
				"kid": "k1",
				"kty": "RSA",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
			}},
		})
	}))
	defer jwks.Close()

	validator := auth.NewJWTValidator(&config.AuthConfig{JWKSURL: jwks.URL, Issuer: "https://issuer.test"})
	userID := uuid.New()

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor(userID, map[string]interface{}{"iss": "https://issuer.test"}))
	token.Header["kid"] = "k1"
	signed, err := token.SignedString(key)
	require.NoError(t, err)

	userCtx, err := validator.ValidateToken(signed)
	require.NoError(t, err)
	assert.Equal(t, userID, userCtx.UserID)

	wrongIssuer := jwt.NewWithClaims(jwt.SigningMethodRS256, claimsFor(userID, map[string]interface{}{"iss": "https://evil.test"}))
	wrongIssuer.Header["kid"] = "k1"
	signed, err = wrongIssuer.SignedString(key)
	require.NoError(t, err)
	_, err = validator.ValidateToken(signed)
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))

	// HS256 is refused when no shared secret is configured
	_, err = validator.ValidateToken(signHS256(t, claimsFor(userID, nil)))
	assert.True(t, errors.Is(err, auth.ErrInvalidToken))
}

func TestMiddleware_RequireAdmin(t *testing.T) {
	admin := profile(domain.RoleAdmin)
	sales := profile(domain.RoleSales)
	authorizer, validator := newAuthorizer(fakeProfiles{admin.ID: admin, sales.ID: sales})
	cfg := &config.Config{ApiKey: config.ApiKeyConfig{Value: "service-key"}}
	mw := auth.NewMiddleware(cfg, validator, authorizer, zap.NewNop())

	var seen *auth.Principal
	handler := mw.Authenticate(mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	do := func(header, value string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/users", nil)
		if header != "" {
			req.Header.Set(header, value)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	rec := do("Authorization", "Bearer "+signHS256(t, claimsFor(admin.ID, nil)))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, admin.ID, seen.UserID)

	rec = do("Authorization", "Bearer "+signHS256(t, claimsFor(sales.ID, map[string]interface{}{"role": "admin"})))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do("", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var body domain.APIError
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, domain.ErrorTypeUnauthorized, body.Type)

	rec = do("Authorization", "Basic abc")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do("x-api-key", "service-key")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do("x-api-key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_RequireAdminAuthorizesTokenItself(t *testing.T) {
	admin := profile(domain.RoleAdmin)
	sales := profile(domain.RoleSales)
	authorizer, validator := newAuthorizer(fakeProfiles{admin.ID: admin, sales.ID: sales})
	mw := auth.NewMiddleware(&config.Config{}, validator, authorizer, zap.NewNop())

	// Mounted without Authenticate in front of it
	handler := mw.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"stored admin", signHS256(t, claimsFor(admin.ID, nil)), http.StatusNoContent},
		{"stored sales claiming admin", signHS256(t, claimsFor(sales.ID, map[string]interface{}{"role": "admin"})), http.StatusForbidden},
		{"unknown profile", signHS256(t, claimsFor(uuid.New(), nil)), http.StatusUnauthorized},
		{"expired", signHS256(t, jwt.MapClaims{"sub": admin.ID.String(), "exp": time.Now().Add(-time.Hour).Unix()}), http.StatusUnauthorized},
		{"garbage", "not-a-jwt", http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/v1/admin/users/x", nil)
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

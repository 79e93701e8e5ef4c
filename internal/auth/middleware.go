package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
)

// systemUserID identifies callers authenticated with the service API key
var systemUserID = uuid.MustParse("00000000-0000-0000-0000-000000000000")

// Middleware handles authentication for HTTP requests
type Middleware struct {
	jwtValidator TokenValidator
	authorizer   *Authorizer
	apiKey       string
	logger       *zap.Logger
}

// NewMiddleware creates a new authentication middleware
func NewMiddleware(cfg *config.Config, validator TokenValidator, authorizer *Authorizer, logger *zap.Logger) *Middleware {
	return &Middleware{
		jwtValidator: validator,
		authorizer:   authorizer,
		apiKey:       cfg.ApiKey.Value,
		logger:       logger,
	}
}

// Authenticate is the main authentication middleware
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Try API key first
		if apiKey := r.Header.Get("x-api-key"); apiKey != "" {
			if !m.validateAPIKey(apiKey) {
				m.logger.Warn("invalid API key attempt",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeAuthError(w, ErrInvalidToken)
				return
			}

			userCtx := &UserContext{
				UserID:      systemUserID,
				DisplayName: "System",
				Email:       "system@straye.io",
				AuthMethod:  "api_key",
			}
			m.logger.Info("request authenticated",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("auth_type", "api_key"),
				zap.Duration("auth_duration", time.Since(start)),
			)
			next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
			return
		}

		token, err := BearerToken(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		userCtx, err := m.jwtValidator.ValidateToken(token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeAuthError(w, err)
			return
		}

		m.logger.Info("request authenticated",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("auth_type", "jwt"),
			zap.String("user_id", userCtx.UserID.String()),
			zap.String("user_email", userCtx.Email),
			zap.Duration("auth_duration", time.Since(start)),
		)

		next.ServeHTTP(w, r.WithContext(WithUserContext(r.Context(), userCtx)))
	})
}

// RequireAdmin passes the bearer token through Authorizer.Authorize, so the stored
// profile role decides on every request. API key callers have no profile and are refused.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userCtx, ok := FromContext(r.Context()); ok && userCtx.AuthMethod == "api_key" {
			writeAuthError(w, ErrForbidden)
			return
		}
		token, err := BearerToken(r)
		if err != nil {
			writeAuthError(w, err)
			return
		}

		principal, err := m.authorizer.Authorize(r.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrUnauthorized) && !errors.Is(err, ErrForbidden) {
				m.logger.Error("admin authorization failed", zap.Error(err))
			}
			writeAuthError(w, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// BearerToken extracts the token from the Authorization header
func BearerToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", ErrInvalidToken
	}
	return strings.TrimSpace(parts[1]), nil
}

func (m *Middleware) validateAPIKey(key string) bool {
	if m.apiKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) == 1
}

func writeAuthError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	errType := domain.ErrorTypeInternal
	detail := "authorization check failed"
	switch {
	case errors.Is(err, ErrForbidden):
		status, errType, detail = http.StatusForbidden, domain.ErrorTypeForbidden, err.Error()
	case errors.Is(err, ErrUnauthorized):
		status, errType, detail = http.StatusUnauthorized, domain.ErrorTypeUnauthorized, err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(domain.APIError{
		Type:   errType,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	})
}

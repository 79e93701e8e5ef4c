package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"go.uber.org/zap"
)

// BrandScopeHeader narrows every list and analytics query to one brand
const BrandScopeHeader = "X-Brand-ID"

// BrandScopeMiddleware reads the caller's brand selection and stores it as the
// effective brand filter. The brandId query parameter wins over the header.
type BrandScopeMiddleware struct {
	logger *zap.Logger
}

func NewBrandScopeMiddleware(logger *zap.Logger) *BrandScopeMiddleware {
	return &BrandScopeMiddleware{logger: logger}
}

func (m *BrandScopeMiddleware) Scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("brandId")
		if raw == "" {
			raw = r.Header.Get(BrandScopeHeader)
		}

		filter := &auth.BrandFilter{}
		if raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				m.logger.Debug("rejected malformed brand scope", zap.String("value", raw))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(domain.APIError{
					Type:   domain.ErrorTypeBadRequest,
					Title:  http.StatusText(http.StatusBadRequest),
					Status: http.StatusBadRequest,
					Detail: "brandId must be a UUID",
				})
				return
			}
			filter.BrandID = &id
		}

		ctx := auth.WithBrandFilter(r.Context(), filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

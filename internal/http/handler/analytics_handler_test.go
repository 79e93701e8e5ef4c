package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/funnel-api/internal/analytics"
	"github.com/straye-as/funnel-api/internal/config"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/http/handler"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"github.com/straye-as/funnel-api/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

// sources serves empty data, optionally failing or blocking the lead query
type sources struct {
	fail  error
	block bool
}

func (s *sources) QueryTransitions(ctx context.Context, q analytics.TransitionQuery) ([]domain.LeadStageHistory, error) {
	return nil, nil
}

func (s *sources) QueryLeads(ctx context.Context, q analytics.LeadQuery) ([]domain.Lead, error) {
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return nil, s.fail
}

func (s *sources) ListStages(ctx context.Context, _ *domain.FunnelType) ([]domain.Stage, error) {
	return nil, nil
}

func (s *sources) QueryActivityTimes(ctx context.Context, q analytics.ActivityQuery) ([]time.Time, error) {
	return nil, nil
}

func newAnalyticsRouter(t *testing.T, src *sources, timeout time.Duration) http.Handler {
	t.Helper()
	db := testutil.SetupTestDB(t)
	engine := analytics.NewEngine(src, src, src, src, analytics.EngineConfig{
		Timeout:    timeout,
		Thresholds: analytics.DefaultThresholds,
	}, zap.NewNop()).WithClock(func() time.Time { return now })

	svc := service.NewAnalyticsService(
		engine,
		repository.NewBrandRepository(db),
		repository.NewFunnelRepository(db),
		nil,
		nil,
		&config.AnalyticsConfig{DefaultRange: analytics.Range30Days},
		time.Minute,
		zap.NewNop(),
	).WithClock(func() time.Time { return now })
	h := handler.NewAnalyticsHandler(svc, zap.NewNop())

	r := chi.NewRouter()
	r.Get("/analytics/summary", h.Summary)
	r.Get("/analytics/leakage", h.Leakage)
	r.Get("/analytics/heatmap", h.Heatmap)
	r.Get("/analytics/reconciliation", h.Reconciliation)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAnalyticsHandler_Summary(t *testing.T) {
	r := newAnalyticsRouter(t, &sources{}, time.Second)

	rec := get(r, "/analytics/summary?range=7d")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary analytics.Summary
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&summary))
	assert.Equal(t, 0, summary.Leakage.TotalLeads)
	assert.Equal(t, 0.0, summary.Leakage.LeakagePercentage)
	assert.Len(t, summary.Heatmap.Cells, analytics.HeatmapCells)
}

func TestAnalyticsHandler_InputErrors(t *testing.T) {
	r := newAnalyticsRouter(t, &sources{}, time.Second)

	for _, path := range []string{
		"/analytics/leakage?range=14d",
		"/analytics/leakage?from=2025-03-05&to=2025-03-01",
		"/analytics/leakage?brandId=acme",
		"/analytics/heatmap?includeInProgress=maybe",
	} {
		rec := get(r, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}

	rec := get(r, "/analytics/leakage?brandId="+uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAnalyticsHandler_UpstreamFailure(t *testing.T) {
	r := newAnalyticsRouter(t, &sources{fail: errors.New("connection refused")}, time.Second)

	rec := get(r, "/analytics/summary")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	problem := decodeProblem(t, rec)
	assert.Equal(t, domain.ErrorTypeUpstream, problem.Type)
	assert.NotContains(t, problem.Detail, "connection refused")
}

func TestAnalyticsHandler_Timeout(t *testing.T) {
	r := newAnalyticsRouter(t, &sources{block: true}, 30*time.Millisecond)

	rec := get(r, "/analytics/leakage")

	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	assert.Equal(t, domain.ErrorTypeTimeout, decodeProblem(t, rec).Type)
}

func TestAnalyticsHandler_ReconciliationNeedsAdmin(t *testing.T) {
	r := newAnalyticsRouter(t, &sources{}, time.Second)

	rec := get(r, "/analytics/reconciliation")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

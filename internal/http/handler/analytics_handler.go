package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type AnalyticsHandler struct {
	analyticsService *service.AnalyticsService
	logger           *zap.Logger
}

func NewAnalyticsHandler(analyticsService *service.AnalyticsService, logger *zap.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		analyticsService: analyticsService,
		logger:           logger,
	}
}

// parseQuery reads the scope and window parameters shared by every analytics route
func parseQuery(r *http.Request) (service.AnalyticsQuery, error) {
	q := r.URL.Query()
	brandID, err := parseOptionalUUID(r, "brandId")
	if err != nil {
		return service.AnalyticsQuery{}, err
	}
	funnelID, err := parseOptionalUUID(r, "funnelId")
	if err != nil {
		return service.AnalyticsQuery{}, err
	}

	includeInProgress := false
	if v := q.Get("includeInProgress"); v != "" {
		includeInProgress, err = strconv.ParseBool(v)
		if err != nil {
			return service.AnalyticsQuery{}, err
		}
	}

	return service.AnalyticsQuery{
		BrandID:           brandID,
		FunnelID:          funnelID,
		Range:             q.Get("range"),
		From:              q.Get("from"),
		To:                q.Get("to"),
		IncludeInProgress: includeInProgress,
	}, nil
}

// Summary godoc
// @Summary Funnel analytics summary
// @Description Leakage, stage velocity, heatmap and bottlenecks computed from one snapshot of the stage ledger. Fails as a whole if any sub-query fails or the aggregation times out.
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start (RFC 3339 or YYYY-MM-DD)"
// @Param to query string false "Window end (RFC 3339 or YYYY-MM-DD)"
// @Param includeInProgress query bool false "Count open visits in velocity"
// @Success 200 {object} analytics.Summary
// @Failure 400 {object} domain.APIError
// @Failure 401 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Failure 504 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /analytics/summary [get]
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	summary, err := h.analyticsService.Summary(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics summary")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// Leakage godoc
// @Summary Funnel leakage
// @Description Share of the window's new leads that moved from follow-up into broadcast
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} analytics.LeakageStats
// @Failure 400 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /analytics/leakage [get]
func (h *AnalyticsHandler) Leakage(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	stats, err := h.analyticsService.Leakage(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics leakage")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// Velocity godoc
// @Summary Stage velocity
// @Description Average hours spent in each stage for visits that ended inside the window
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Param includeInProgress query bool false "Count open visits"
// @Success 200 {array} analytics.StageVelocity
// @Failure 400 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /analytics/velocity [get]
func (h *AnalyticsHandler) Velocity(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	velocity, err := h.analyticsService.Velocity(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics velocity")
		return
	}
	respondJSON(w, http.StatusOK, velocity)
}

// Bottlenecks godoc
// @Summary Stage bottlenecks
// @Description Stages ranked by severity of their average dwell time
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {array} analytics.Bottleneck
// @Failure 400 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /analytics/bottlenecks [get]
func (h *AnalyticsHandler) Bottlenecks(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	bottlenecks, err := h.analyticsService.Bottlenecks(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics bottlenecks")
		return
	}
	respondJSON(w, http.StatusOK, bottlenecks)
}

// Heatmap godoc
// @Summary Activity heatmap
// @Description 7x24 grid of activity counts by day of week and hour
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} analytics.Heatmap
// @Failure 400 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /analytics/heatmap [get]
func (h *AnalyticsHandler) Heatmap(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	heatmap, err := h.analyticsService.Heatmap(r.Context(), q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics heatmap")
		return
	}
	respondJSON(w, http.StatusOK, heatmap)
}

// Reconciliation godoc
// @Summary Reconcile with stored functions
// @Description Compares engine leakage and velocity with the database functions for the same window. Admin only.
// @Tags Analytics
// @Produce json
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param range query string false "Window preset" Enums(7d, 30d, 90d, all)
// @Param from query string false "Window start"
// @Param to query string false "Window end"
// @Success 200 {object} analytics.ReconciliationReport
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 503 {object} domain.APIError
// @Security BearerAuth
// @Router /analytics/reconciliation [get]
func (h *AnalyticsHandler) Reconciliation(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	q, err := parseQuery(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	report, err := h.analyticsService.Reconcile(r.Context(), principal, q)
	if err != nil {
		respondServiceError(w, h.logger, err, "analytics reconciliation")
		return
	}
	respondJSON(w, http.StatusOK, report)
}

package handler

import (
	"net/http"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type FunnelHandler struct {
	funnelService *service.FunnelService
	logger        *zap.Logger
}

func NewFunnelHandler(funnelService *service.FunnelService, logger *zap.Logger) *FunnelHandler {
	return &FunnelHandler{funnelService: funnelService, logger: logger}
}

// GetByID godoc
// @Summary Get funnel
// @Tags Funnels
// @Produce json
// @Param id path string true "Funnel ID" format(uuid)
// @Success 200 {object} domain.FunnelDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /funnels/{id} [get]
func (h *FunnelHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	funnel, err := h.funnelService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get funnel")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

// Create godoc
// @Summary Create funnel
// @Description The brand's first funnel becomes its default
// @Tags Funnels
// @Accept json
// @Produce json
// @Param request body domain.CreateFunnelRequest true "Funnel data"
// @Success 201 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /funnels [post]
func (h *FunnelHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateFunnelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	funnel, err := h.funnelService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create funnel")
		return
	}
	w.Header().Set("Location", "/api/v1/funnels/"+funnel.ID.String())
	respondJSON(w, http.StatusCreated, funnel)
}

// Update godoc
// @Summary Update funnel
// @Tags Funnels
// @Accept json
// @Produce json
// @Param id path string true "Funnel ID" format(uuid)
// @Param request body domain.UpdateFunnelRequest true "Funnel data"
// @Success 200 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /funnels/{id} [put]
func (h *FunnelHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateFunnelRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	funnel, err := h.funnelService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update funnel")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

// SetDefault godoc
// @Summary Make funnel the brand default
// @Tags Funnels
// @Produce json
// @Param id path string true "Funnel ID" format(uuid)
// @Success 200 {object} domain.FunnelDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /funnels/{id}/default [post]
func (h *FunnelHandler) SetDefault(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	funnel, err := h.funnelService.SetDefault(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "set default funnel")
		return
	}
	respondJSON(w, http.StatusOK, funnel)
}

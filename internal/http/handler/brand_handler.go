package handler

import (
	"net/http"
	"strconv"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type BrandHandler struct {
	brandService  *service.BrandService
	funnelService *service.FunnelService
	logger        *zap.Logger
}

func NewBrandHandler(brandService *service.BrandService, funnelService *service.FunnelService, logger *zap.Logger) *BrandHandler {
	return &BrandHandler{
		brandService:  brandService,
		funnelService: funnelService,
		logger:        logger,
	}
}

// List godoc
// @Summary List brands
// @Tags Brands
// @Produce json
// @Param includeInactive query bool false "Include deactivated brands"
// @Success 200 {array} domain.BrandDTO
// @Failure 401 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands [get]
func (h *BrandHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))
	brands, err := h.brandService.List(r.Context(), includeInactive)
	if err != nil {
		respondServiceError(w, h.logger, err, "list brands")
		return
	}
	respondJSON(w, http.StatusOK, brands)
}

// GetByID godoc
// @Summary Get brand
// @Tags Brands
// @Produce json
// @Param id path string true "Brand ID" format(uuid)
// @Success 200 {object} domain.BrandDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands/{id} [get]
func (h *BrandHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	brand, err := h.brandService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get brand")
		return
	}
	respondJSON(w, http.StatusOK, brand)
}

// Create godoc
// @Summary Create brand
// @Tags Brands
// @Accept json
// @Produce json
// @Param request body domain.CreateBrandRequest true "Brand data"
// @Success 201 {object} domain.BrandDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands [post]
func (h *BrandHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateBrandRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	brand, err := h.brandService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create brand")
		return
	}
	w.Header().Set("Location", "/api/v1/brands/"+brand.ID.String())
	respondJSON(w, http.StatusCreated, brand)
}

// Update godoc
// @Summary Update brand
// @Tags Brands
// @Accept json
// @Produce json
// @Param id path string true "Brand ID" format(uuid)
// @Param request body domain.UpdateBrandRequest true "Brand data"
// @Success 200 {object} domain.BrandDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands/{id} [put]
func (h *BrandHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateBrandRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	brand, err := h.brandService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update brand")
		return
	}
	respondJSON(w, http.StatusOK, brand)
}

// Deactivate godoc
// @Summary Deactivate brand
// @Description Only the brand owner or an administrator may deactivate a brand
// @Tags Brands
// @Param id path string true "Brand ID" format(uuid)
// @Success 204
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands/{id} [delete]
func (h *BrandHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.brandService.Deactivate(r.Context(), id); err != nil {
		respondServiceError(w, h.logger, err, "deactivate brand")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListFunnels godoc
// @Summary List a brand's funnels
// @Tags Brands
// @Produce json
// @Param id path string true "Brand ID" format(uuid)
// @Success 200 {array} domain.FunnelDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /brands/{id}/funnels [get]
func (h *BrandHandler) ListFunnels(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	funnels, err := h.funnelService.ListByBrand(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "list funnels")
		return
	}
	respondJSON(w, http.StatusOK, funnels)
}

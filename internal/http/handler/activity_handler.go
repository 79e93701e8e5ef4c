package handler

import (
	"net/http"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type ActivityHandler struct {
	activityService *service.ActivityService
	logger          *zap.Logger
}

func NewActivityHandler(activityService *service.ActivityService, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{activityService: activityService, logger: logger}
}

// List godoc
// @Summary List a lead's activities
// @Tags Activities
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.LeadActivityDTO}
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id}/activities [get]
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	leadID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	page, pageSize := parsePagination(r)
	result, err := h.activityService.ListByLead(r.Context(), leadID, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list activities")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Create godoc
// @Summary Log an activity on a lead
// @Tags Activities
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.CreateActivityRequest true "Activity"
// @Success 201 {object} domain.LeadActivityDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id}/activities [post]
func (h *ActivityHandler) Create(w http.ResponseWriter, r *http.Request) {
	leadID, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.CreateActivityRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	activity, err := h.activityService.Create(r.Context(), leadID, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create activity")
		return
	}
	respondJSON(w, http.StatusCreated, activity)
}

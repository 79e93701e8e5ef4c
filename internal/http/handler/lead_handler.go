package handler

import (
	"net/http"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type LeadHandler struct {
	leadService *service.LeadService
	logger      *zap.Logger
}

func NewLeadHandler(leadService *service.LeadService, logger *zap.Logger) *LeadHandler {
	return &LeadHandler{leadService: leadService, logger: logger}
}

// List godoc
// @Summary List leads
// @Tags Leads
// @Produce json
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Param brandId query string false "Brand ID" format(uuid)
// @Param funnelId query string false "Funnel ID" format(uuid)
// @Param stageId query string false "Current stage ID" format(uuid)
// @Param status query string false "Status" Enums(active, deal, lost)
// @Param search query string false "Search name, phone or email"
// @Param sortBy query string false "Sort field" Enums(createdAt, updatedAt, name, status)
// @Param sortOrder query string false "Sort order" Enums(asc, desc)
// @Success 200 {object} domain.PaginatedResponse{data=[]domain.LeadDTO}
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads [get]
func (h *LeadHandler) List(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filters := &domain.LeadFilters{Search: q.Get("search")}
	var err error
	if filters.BrandID, err = parseOptionalUUID(r, "brandId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.FunnelID, err = parseOptionalUUID(r, "funnelId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filters.StageID, err = parseOptionalUUID(r, "stageId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if status := q.Get("status"); status != "" {
		s := domain.LeadStatus(status)
		if !s.IsValid() {
			respondWithError(w, http.StatusBadRequest, "Invalid status")
			return
		}
		filters.Status = &s
	}

	sort := repository.SortConfig{Field: q.Get("sortBy"), Order: repository.ParseSortOrder(q.Get("sortOrder"))}
	if sort.Field == "" {
		sort = repository.DefaultSortConfig()
	}

	result, err := h.leadService.List(r.Context(), filters, page, pageSize, sort)
	if err != nil {
		respondServiceError(w, h.logger, err, "list leads")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetByID godoc
// @Summary Get lead
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Success 200 {object} domain.LeadDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id} [get]
func (h *LeadHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	lead, err := h.leadService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get lead")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// Create godoc
// @Summary Create lead
// @Description Places the lead on the first stage of its pipeline and records the initial ledger entry
// @Tags Leads
// @Accept json
// @Produce json
// @Param request body domain.CreateLeadRequest true "Lead data"
// @Success 201 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads [post]
func (h *LeadHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateLeadRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lead, err := h.leadService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create lead")
		return
	}
	w.Header().Set("Location", "/api/v1/leads/"+lead.ID.String())
	respondJSON(w, http.StatusCreated, lead)
}

// MoveStage godoc
// @Summary Move lead to another stage
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.MoveLeadStageRequest true "Target stage"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id}/stage [post]
func (h *LeadHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.MoveLeadStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lead, err := h.leadService.MoveStage(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "move lead stage")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// UpdateStatus godoc
// @Summary Update lead status
// @Tags Leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Param request body domain.UpdateLeadStatusRequest true "Status"
// @Success 200 {object} domain.LeadDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id}/status [put]
func (h *LeadHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateLeadStatusRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	lead, err := h.leadService.UpdateStatus(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update lead status")
		return
	}
	respondJSON(w, http.StatusOK, lead)
}

// History godoc
// @Summary Lead stage history
// @Tags Leads
// @Produce json
// @Param id path string true "Lead ID" format(uuid)
// @Success 200 {array} domain.LeadStageHistoryDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /leads/{id}/history [get]
func (h *LeadHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	history, err := h.leadService.History(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "lead history")
		return
	}
	respondJSON(w, http.StatusOK, history)
}

package handler

import (
	"fmt"
	"io"
	"net/http"

	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

type StageHandler struct {
	stageService *service.StageService
	maxUploadMB  int64
	logger       *zap.Logger
}

func NewStageHandler(stageService *service.StageService, maxUploadMB int64, logger *zap.Logger) *StageHandler {
	return &StageHandler{
		stageService: stageService,
		maxUploadMB:  maxUploadMB,
		logger:       logger,
	}
}

// List godoc
// @Summary List stages
// @Tags Stages
// @Produce json
// @Param funnelType query string false "Pipeline" Enums(follow_up, broadcast)
// @Success 200 {array} domain.StageDTO
// @Failure 400 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages [get]
func (h *StageHandler) List(w http.ResponseWriter, r *http.Request) {
	var funnelType *domain.FunnelType
	if v := r.URL.Query().Get("funnelType"); v != "" {
		ft := domain.FunnelType(v)
		funnelType = &ft
	}
	stages, err := h.stageService.List(r.Context(), funnelType)
	if err != nil {
		respondServiceError(w, h.logger, err, "list stages")
		return
	}
	respondJSON(w, http.StatusOK, stages)
}

// GetByID godoc
// @Summary Get stage with its script
// @Tags Stages
// @Produce json
// @Param id path string true "Stage ID" format(uuid)
// @Success 200 {object} domain.StageDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/{id} [get]
func (h *StageHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	stage, err := h.stageService.GetByID(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "get stage")
		return
	}
	respondJSON(w, http.StatusOK, stage)
}

// Create godoc
// @Summary Create stage
// @Tags Stages
// @Accept json
// @Produce json
// @Param request body domain.CreateStageRequest true "Stage data"
// @Success 201 {object} domain.StageDTO
// @Failure 400 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages [post]
func (h *StageHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	stage, err := h.stageService.Create(r.Context(), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create stage")
		return
	}
	respondJSON(w, http.StatusCreated, stage)
}

// Update godoc
// @Summary Rename stage
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Stage ID" format(uuid)
// @Param request body domain.UpdateStageRequest true "Stage data"
// @Success 200 {object} domain.StageDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/{id} [put]
func (h *StageHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateStageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	stage, err := h.stageService.Update(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update stage")
		return
	}
	respondJSON(w, http.StatusOK, stage)
}

// UpdateScript godoc
// @Summary Set stage script text
// @Tags Stages
// @Accept json
// @Produce json
// @Param id path string true "Stage ID" format(uuid)
// @Param request body domain.UpdateStageScriptRequest true "Script"
// @Success 200 {object} domain.StageScriptDTO
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/{id}/script [put]
func (h *StageHandler) UpdateScript(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateStageScriptRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	script, err := h.stageService.UpdateScript(r.Context(), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update stage script")
		return
	}
	respondJSON(w, http.StatusOK, script)
}

// UploadMedia godoc
// @Summary Upload stage script media
// @Description Image, audio, video or PDF attached to the stage script. Replaces any previous file.
// @Tags Stages
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Stage ID" format(uuid)
// @Param file formData file true "Media file"
// @Success 200 {object} domain.StageScriptDTO
// @Failure 400 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 413 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/{id}/media [post]
func (h *StageHandler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadMB*1024*1024)
	if err := r.ParseMultipartForm(h.maxUploadMB * 1024 * 1024); err != nil {
		respondWithError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("File too large: maximum size is %dMB", h.maxUploadMB))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Missing file")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	script, err := h.stageService.UploadMedia(r.Context(), id, header.Filename, contentType, file)
	if err != nil {
		respondServiceError(w, h.logger, err, "upload stage media")
		return
	}
	respondJSON(w, http.StatusOK, script)
}

// DownloadMedia godoc
// @Summary Download stage script media
// @Tags Stages
// @Produce octet-stream
// @Param id path string true "Stage ID" format(uuid)
// @Success 200 {file} binary
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Security ApiKeyAuth
// @Router /stages/{id}/media [get]
func (h *StageHandler) DownloadMedia(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	reader, mediaType, err := h.stageService.OpenMedia(r.Context(), id)
	if err != nil {
		respondServiceError(w, h.logger, err, "download stage media")
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

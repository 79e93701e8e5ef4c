package handler

import (
	"net/http"
	"time"

	"github.com/straye-as/funnel-api/internal/auth"
	"github.com/straye-as/funnel-api/internal/domain"
	"github.com/straye-as/funnel-api/internal/repository"
	"github.com/straye-as/funnel-api/internal/service"
	"go.uber.org/zap"
)

// AdminHandler serves user management. Routes are mounted behind RequireAdmin,
// which places the resolved Principal on the request context.
type AdminHandler struct {
	adminService *service.AdminService
	auditService *service.AuditLogService
	logger       *zap.Logger
}

func NewAdminHandler(adminService *service.AdminService, auditService *service.AuditLogService, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		auditService: auditService,
		logger:       logger,
	}
}

func principal(r *http.Request) *auth.Principal {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

// ListUsers godoc
// @Summary List users
// @Tags Admin
// @Produce json
// @Success 200 {array} domain.ProfileDTO
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /admin/users [get]
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.adminService.ListUsers(r.Context(), principal(r))
	if err != nil {
		respondServiceError(w, h.logger, err, "list users")
		return
	}
	respondJSON(w, http.StatusOK, users)
}

// CreateUser godoc
// @Summary Create user
// @Tags Admin
// @Accept json
// @Produce json
// @Param request body domain.CreateUserRequest true "User data"
// @Success 201 {object} domain.ProfileDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 409 {object} domain.APIError
// @Security BearerAuth
// @Router /admin/users [post]
func (h *AdminHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.adminService.CreateUser(r.Context(), principal(r), &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "create user")
		return
	}
	w.Header().Set("Location", "/api/v1/admin/users/"+user.ID.String())
	respondJSON(w, http.StatusCreated, user)
}

// UpdateUser godoc
// @Summary Update user
// @Description Change a user's name, role or active flag
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID" format(uuid)
// @Param request body domain.UpdateUserRequest true "Changes"
// @Success 200 {object} domain.ProfileDTO
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *AdminHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	var req domain.UpdateUserRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	user, err := h.adminService.UpdateUser(r.Context(), principal(r), id, &req)
	if err != nil {
		respondServiceError(w, h.logger, err, "update user")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

// DeleteUser godoc
// @Summary Delete user
// @Description Admins cannot delete their own account; that attempt is a policy violation (422), not an authorization failure.
// @Tags Admin
// @Param id path string true "User ID" format(uuid)
// @Success 204
// @Failure 401 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Failure 404 {object} domain.APIError
// @Failure 422 {object} domain.APIError
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *AdminHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUIDParam(w, r, "id")
	if !ok {
		return
	}
	if err := h.adminService.DeleteUser(r.Context(), principal(r), id); err != nil {
		respondServiceError(w, h.logger, err, "delete user")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListAuditLogs godoc
// @Summary List audit logs
// @Tags Admin
// @Produce json
// @Param entityType query string false "Entity type"
// @Param entityId query string false "Entity ID" format(uuid)
// @Param actorId query string false "Actor ID" format(uuid)
// @Param action query string false "Action" Enums(create, update, delete)
// @Param startDate query string false "Start time (RFC 3339)"
// @Param endDate query string false "End time (RFC 3339)"
// @Param page query int false "Page number" default(1)
// @Param pageSize query int false "Items per page (max 200)" default(20)
// @Success 200 {object} domain.PaginatedResponse{data=[]service.AuditLogDTO}
// @Failure 400 {object} domain.APIError
// @Failure 403 {object} domain.APIError
// @Security BearerAuth
// @Router /admin/audit [get]
func (h *AdminHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := r.URL.Query()

	filter := &repository.AuditLogFilter{EntityType: q.Get("entityType")}
	var err error
	if filter.EntityID, err = parseOptionalUUID(r, "entityId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if filter.ActorID, err = parseOptionalUUID(r, "actorId"); err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if action := q.Get("action"); action != "" {
		a := domain.AuditAction(action)
		filter.Action = &a
	}
	for name, dst := range map[string]**time.Time{"startDate": &filter.StartTime, "endDate": &filter.EndTime} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "Invalid "+name+": must be RFC 3339")
				return
			}
			*dst = &t
		}
	}

	result, err := h.auditService.List(r.Context(), principal(r), filter, page, pageSize)
	if err != nil {
		respondServiceError(w, h.logger, err, "list audit logs")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

package roles

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/shared"
	"github.com/versa-platform/versa-core/internal/tenancy"
)

// GuardFactory builds permission-check middleware.
type GuardFactory interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
}

// Handler manages role administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     GuardFactory
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard GuardFactory) *Handler {
	return &Handler{logger: logger, service: service, guard: guard, validator: validator.New()}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesView))
		r.Get("/", h.listRoles)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesEdit))
		r.Post("/", h.createRole)
		r.Delete("/{id}", h.deleteRole)
		r.Put("/{id}/permissions", h.setPermissions)
	})
}

// MountAssignmentRoutes registers assignment endpoints, mounted under
// /users/{userID}/roles.
func (h *Handler) MountAssignmentRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermRolesEdit))
		r.Post("/", h.assignRole)
		r.Delete("/{roleID}", h.removeRole)
	})
}

type roleView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Scope    string `json:"scope"`
	TenantID *int64 `json:"tenant_id,omitempty"`
	Level    int    `json:"level"`
	IsSystem bool   `json:"is_system"`
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	list, err := h.service.ListRoles(r.Context(), sc.TenantID)
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]roleView, 0, len(list))
	for _, role := range list {
		views = append(views, roleView{ID: role.ID, Name: role.Name, Scope: role.Scope, TenantID: role.TenantID, Level: role.Level, IsSystem: role.IsSystem})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

type createRoleRequest struct {
	Name  string `json:"name" validate:"required,min=2"`
	Scope string `json:"scope" validate:"required,oneof=global tenant"`
	Level int    `json:"level" validate:"gte=0,lte=100"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	var req createRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	// Only super-admins may mint global roles; everyone else creates roles
	// owned by their own tenant.
	var tenantID *int64
	if req.Scope == ScopeTenant {
		id := sc.TenantID
		tenantID = &id
	} else if !sc.IsSuperAdmin {
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "global roles are managed by platform operators")
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.Scope, tenantID, req.Level)
	if err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "role name already in use")
			return
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, roleView{ID: role.ID, Name: role.Name, Scope: role.Scope, TenantID: role.TenantID, Level: role.Level, IsSystem: role.IsSystem})
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "role does not exist or is a system role")
			return
		}
		h.logger.Error("delete role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type setPermissionsRequest struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"required"`
}

func (h *Handler) setPermissions(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var req setPermissionsRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetRolePermissions(r.Context(), id, req.PermissionIDs); err != nil {
		h.logger.Error("set role permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type assignRoleRequest struct {
	RoleID   int64  `json:"role_id" validate:"required,gt=0"`
	TenantID *int64 `json:"tenant_id"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	var req assignRoleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, req.RoleID, req.TenantID); err != nil {
		h.logger.Error("assign role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || userID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	roleID, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil || roleID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return
	}
	var tenantID *int64
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
			return
		}
		tenantID = &id
	}
	if err := h.service.RemoveRole(r.Context(), userID, roleID, tenantID); err != nil {
		h.logger.Error("remove role", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

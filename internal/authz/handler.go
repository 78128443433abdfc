package authz

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/shared"
	"github.com/versa-platform/versa-core/internal/tenancy"
)

// Handler exposes the engine's read and override-management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	guard     Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard Middleware) *Handler {
	return &Handler{
		logger:    logger,
		service:   service,
		guard:     guard,
		validator: validator.New(),
	}
}

// MountMeRoutes registers the current-principal access endpoints.
func (h *Handler) MountMeRoutes(r chi.Router) {
	r.Get("/access", h.myAccess)
	r.Get("/verticals", h.myVerticals)
}

// MountPermissionRoutes registers the permission catalog endpoint.
func (h *Handler) MountPermissionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermPermissionsView))
		r.Get("/", h.listPermissions)
	})
}

// MountOverrideRoutes registers override management endpoints.
func (h *Handler) MountOverrideRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermOverridesEdit))
		r.Post("/", h.createOverride)
		r.Delete("/", h.deleteOverride)
	})
}

func (h *Handler) myAccess(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	info, err := h.service.BuildUserAccessInfo(r.Context(), sc.UserID, sc.TenantID)
	if err != nil {
		h.logger.Error("build access info", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, info)
}

func (h *Handler) myVerticals(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	accessible, err := h.service.AccessibleVerticals(r.Context(), sc.UserID, sc.TenantID)
	if err != nil {
		h.logger.Error("accessible verticals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	type verticalView struct {
		Key  string `json:"key"`
		Name string `json:"name"`
	}
	views := make([]verticalView, 0, len(accessible))
	for _, v := range accessible {
		views = append(views, verticalView{Key: v.Key, Name: v.Name})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verticals": views})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.logger.Error("list permissions", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	type permissionView struct {
		ID         int64  `json:"id"`
		Key        string `json:"key"`
		Name       string `json:"name"`
		Module     string `json:"module"`
		VerticalID *int64 `json:"vertical_id,omitempty"`
	}
	views := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, permissionView{ID: p.ID, Key: p.Key, Name: p.Name, Module: p.Module, VerticalID: p.VerticalID})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": views})
}

type overrideRequest struct {
	UserID        int64      `json:"user_id" validate:"required,gt=0"`
	TenantID      int64      `json:"tenant_id" validate:"required,gt=0"`
	PermissionKey string     `json:"permission_key" validate:"required"`
	Effect        string     `json:"effect" validate:"required,oneof=allow deny"`
	Reason        string     `json:"reason" validate:"required"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (h *Handler) createOverride(w http.ResponseWriter, r *http.Request) {
	sc, _ := tenancy.FromContext(r.Context())

	var req overrideRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	perm, err := h.service.PermissionByKey(r.Context(), req.PermissionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown permission: "+req.PermissionKey)
			return
		}
		h.logger.Error("lookup permission", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}

	override, err := h.service.SetOverride(r.Context(), Override{
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		PermissionID: perm.ID,
		Effect:       req.Effect,
		Reason:       req.Reason,
		CreatedBy:    sc.UserID,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"id": override.ID})
}

type overrideDeleteRequest struct {
	UserID        int64  `json:"user_id" validate:"required,gt=0"`
	TenantID      int64  `json:"tenant_id" validate:"required,gt=0"`
	PermissionKey string `json:"permission_key" validate:"required"`
}

func (h *Handler) deleteOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideDeleteRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	perm, err := h.service.PermissionByKey(r.Context(), req.PermissionKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "unknown permission: "+req.PermissionKey)
			return
		}
		h.logger.Error("lookup permission", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	if err := h.service.RemoveOverride(r.Context(), req.UserID, req.TenantID, perm.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "override does not exist")
			return
		}
		h.logger.Error("delete override", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

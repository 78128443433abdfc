package tenants

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/shared"
)

// GuardFactory builds permission-check middleware.
type GuardFactory interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
}

// Handler manages tenant administration endpoints.
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

// MountRoutes registers tenant routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermTenantsView))
		r.Get("/", h.listTenants)
		r.Get("/{id}", h.getTenant)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermTenantsEdit))
		r.Post("/", h.createTenant)
		r.Put("/{id}/active", h.setActive)
	})
}

type tenantView struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) listTenants(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListTenants(r.Context())
	if err != nil {
		h.logger.Error("list tenants", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]tenantView, 0, len(list))
	for _, t := range list {
		views = append(views, tenantView{ID: t.ID, Name: t.Name, IsActive: t.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"tenants": views})
}

func (h *Handler) getTenant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	t, err := h.service.GetTenant(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "tenant does not exist")
			return
		}
		h.logger.Error("get tenant", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, tenantView{ID: t.ID, Name: t.Name, IsActive: t.IsActive})
}

type createTenantRequest struct {
	Name string `json:"name" validate:"required,min=2"`
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	t, err := h.service.CreateTenant(r.Context(), req.Name)
	if err != nil {
		h.logger.Error("create tenant", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, tenantView{ID: t.ID, Name: t.Name, IsActive: t.IsActive})
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	var req setActiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetActive(r.Context(), id, *req.Active); err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "tenant does not exist")
			return
		}
		h.logger.Error("set tenant active", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package verticals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
)

// GuardFactory builds permission-check middleware. It matches the authz
// middleware's RequireAny and exists so this package does not import the
// engine it feeds.
type GuardFactory interface {
	RequireAny(perms ...string) func(http.Handler) http.Handler
}

// Handler exposes the vertical catalog and per-tenant enablement.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountCatalogRoutes registers catalog endpoints under /verticals.
func (h *Handler) MountCatalogRoutes(r chi.Router, guard GuardFactory, viewPerm string) {
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(viewPerm))
		r.Get("/", h.listCatalog)
	})
}

// MountTenantRoutes registers enablement endpoints under
// /tenants/{tenantID}/verticals.
func (h *Handler) MountTenantRoutes(r chi.Router, guard GuardFactory, viewPerm, editPerm string) {
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(viewPerm))
		r.Get("/", h.listForTenant)
	})
	r.Group(func(r chi.Router) {
		r.Use(guard.RequireAny(editPerm))
		r.Put("/{key}", h.setEnablement)
	})
}

func (h *Handler) listCatalog(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list verticals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verticals": toViews(catalog)})
}

func (h *Handler) listForTenant(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	enabled, err := h.service.EnabledForTenant(r.Context(), tenantID)
	if err != nil {
		h.logger.Error("list tenant verticals", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"verticals": toViews(enabled)})
}

type enablementRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (h *Handler) setEnablement(w http.ResponseWriter, r *http.Request) {
	tenantID, err := strconv.ParseInt(chi.URLParam(r, "tenantID"), 10, 64)
	if err != nil || tenantID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid tenant id")
		return
	}
	key := chi.URLParam(r, "key")

	var req enablementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	if err := h.service.SetEnablement(r.Context(), tenantID, key, *req.Enabled); err != nil {
		if errors.Is(err, ErrNotFound) {
			httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeVerticalNotFound, "Vertical Not Found", "unknown vertical: "+key)
			return
		}
		h.logger.Error("set vertical enablement", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type verticalView struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	IsActive     bool   `json:"is_active"`
	DisplayOrder int    `json:"display_order"`
}

func toViews(list []Vertical) []verticalView {
	views := make([]verticalView, 0, len(list))
	for _, v := range list {
		views = append(views, verticalView{ID: v.ID, Key: v.Key, Name: v.Name, IsActive: v.IsActive, DisplayOrder: v.DisplayOrder})
	}
	return views
}

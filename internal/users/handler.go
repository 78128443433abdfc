package users

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

// Handler manages user administration endpoints. Listing and creation are
// scoped to the caller's tenant; row-level security backs the same boundary
// in the database.
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

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{id}", h.getUser)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAny(shared.PermUsersEdit))
		r.Post("/", h.createUser)
		r.Put("/{id}/active", h.setActive)
	})
}

type userView struct {
	ID           int64  `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	TenantID     *int64 `json:"tenant_id,omitempty"`
	IsSuperAdmin bool   `json:"is_superadmin"`
	IsActive     bool   `json:"is_active"`
}

func toView(u User) userView {
	return userView{ID: u.ID, Email: u.Email, Name: u.Name, TenantID: u.TenantID, IsSuperAdmin: u.IsSuperAdmin, IsActive: u.IsActive}
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	list, err := h.service.ListUsers(r.Context(), sc.TenantID)
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	views := make([]userView, 0, len(list))
	for _, u := range list {
		views = append(views, toView(u))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user does not exist")
			return
		}
		h.logger.Error("get user", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	// Never confirm accounts outside the caller's tenant.
	if sc, ok := tenancy.FromContext(r.Context()); ok && !sc.IsSuperAdmin {
		if u.TenantID == nil || *u.TenantID != sc.TenantID {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "user not in your tenant")
			return
		}
	}
	httpx.JSON(w, http.StatusOK, toView(u))
}

type createUserRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,min=2"`
	Password string `json:"password" validate:"required,min=8"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	sc, ok := tenancy.FromContext(r.Context())
	if !ok {
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
		return
	}
	var req createUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	u, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Password, sc.TenantID)
	if err != nil {
		if errors.Is(err, httpx.ErrDuplicate) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", "email already registered")
			return
		}
		h.logger.Error("create user", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	httpx.JSON(w, http.StatusCreated, toView(u))
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
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
			httpx.Problem(w, http.StatusNotFound, "Not Found", "user does not exist")
			return
		}
		h.logger.Error("set user active", slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

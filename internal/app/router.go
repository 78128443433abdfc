package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/auth"
	"github.com/versa-platform/versa-core/internal/authz"
	"github.com/versa-platform/versa-core/internal/observability"
	"github.com/versa-platform/versa-core/internal/roles"
	"github.com/versa-platform/versa-core/internal/shared"
	"github.com/versa-platform/versa-core/internal/tenancy"
	"github.com/versa-platform/versa-core/internal/tenants"
	"github.com/versa-platform/versa-core/internal/users"
	"github.com/versa-platform/versa-core/internal/verticals"
	"github.com/versa-platform/versa-core/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Pool           *pgxpool.Pool

	TenancyMiddleware tenancy.Middleware
	Guard             authz.Middleware

	AuthHandler      *auth.Handler
	AuthzHandler     *authz.Handler
	TenantsHandler   *tenants.Handler
	UsersHandler     *users.Handler
	RolesHandler     *roles.Handler
	VerticalsHandler *verticals.Handler
	JobsHandler      *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with platform defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)

	// Everything below runs with a resolved security context.
	r.Group(func(r chi.Router) {
		r.Use(params.TenancyMiddleware.Require)

		r.Route("/me", params.AuthzHandler.MountMeRoutes)

		if params.TenantsHandler != nil {
			r.Route("/tenants", func(r chi.Router) {
				params.TenantsHandler.MountRoutes(r)
				if params.VerticalsHandler != nil {
					r.Route("/{tenantID}/verticals", func(r chi.Router) {
						params.VerticalsHandler.MountTenantRoutes(r, params.Guard, shared.PermVerticalsView, shared.PermVerticalsEdit)
					})
				}
			})
		}
		if params.UsersHandler != nil {
			r.Route("/users", func(r chi.Router) {
				params.UsersHandler.MountRoutes(r)
				if params.RolesHandler != nil {
					r.Route("/{userID}/roles", params.RolesHandler.MountAssignmentRoutes)
				}
			})
		}
		if params.RolesHandler != nil {
			r.Route("/roles", params.RolesHandler.MountRoutes)
		}
		r.Route("/permissions", params.AuthzHandler.MountPermissionRoutes)
		r.Route("/overrides", params.AuthzHandler.MountOverrideRoutes)
		if params.VerticalsHandler != nil {
			r.Route("/verticals", func(r chi.Router) {
				params.VerticalsHandler.MountCatalogRoutes(r, params.Guard, shared.PermVerticalsView)
			})
		}
	})

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

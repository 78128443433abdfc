package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/versa-platform/versa-core/internal/observability"
	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/tenancy"
)

// Middleware wires permission checks into HTTP handlers. It expects the
// tenancy middleware to have resolved the security context upstream.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// RequireAny ensures the current user holds at least one of the required
// permissions in the current tenant.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			sc, ok := tenancy.FromContext(r.Context())
			if !ok {
				httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
				return
			}
			for _, perm := range normalized {
				allowed, err := m.Service.HasPermission(r.Context(), sc.UserID, sc.TenantID, perm)
				if err != nil {
					m.fail(w, err)
					return
				}
				if allowed {
					// HasPermission audits super-admin bypasses; the metric
					// label keeps bypass traffic visible separately.
					if sc.IsSuperAdmin {
						m.Metrics.AuthzDecision("permission", observability.DecisionBypassed)
					} else {
						m.Metrics.AuthzDecision("permission", observability.DecisionAllowed)
					}
					next.ServeHTTP(w, r)
					return
				}
			}
			m.Metrics.AuthzDecision("permission", observability.DecisionDenied)
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
		})
	}
}

// RequireAll ensures the current user holds every required permission in
// the current tenant.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalizePermissions(perms)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(normalized) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			sc, ok := tenancy.FromContext(r.Context())
			if !ok {
				httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
				return
			}
			for _, perm := range normalized {
				allowed, err := m.Service.HasPermission(r.Context(), sc.UserID, sc.TenantID, perm)
				if err != nil {
					m.fail(w, err)
					return
				}
				if !allowed {
					m.Metrics.AuthzDecision("permission", observability.DecisionDenied)
					httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission")
					return
				}
			}
			if sc.IsSuperAdmin {
				m.Metrics.AuthzDecision("permission", observability.DecisionBypassed)
			} else {
				m.Metrics.AuthzDecision("permission", observability.DecisionAllowed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) fail(w http.ResponseWriter, err error) {
	if m.Logger != nil {
		m.Logger.Error("permission check", slog.Any("error", err))
	}
	// Infrastructure failure during a lookup is never reinterpreted as an
	// authorization decision.
	httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
}

func normalizePermissions(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	normalized := make([]string, 0, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		normalized = append(normalized, p)
	}
	return normalized
}

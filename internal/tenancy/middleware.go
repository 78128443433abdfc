package tenancy

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/shared"
)

// Middleware resolves the security context for authenticated requests and
// stores it on the request context for downstream gates.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// Require resolves the security context and rejects unauthenticated or
// tenant-less requests. Handlers behind it can rely on FromContext
// succeeding.
func (m Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := sessionUserID(r, m.Logger)
		if !ok {
			httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
			return
		}
		sc, err := m.Resolver.Resolve(r.Context(), userID)
		if err != nil {
			RespondResolveError(w, err, m.Logger)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithContext(r.Context(), sc)))
	})
}

// RespondResolveError writes the problem response for a resolver failure.
func RespondResolveError(w http.ResponseWriter, err error, logger *slog.Logger) {
	switch {
	case errors.Is(err, ErrAuthRequired):
		httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
	case errors.Is(err, ErrTenantRequired):
		httpx.ProblemCode(w, http.StatusForbidden, httpx.CodeTenantRequired, "Forbidden", "no tenant associated with this account")
	default:
		if logger != nil {
			logger.Error("resolve security context", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func sessionUserID(r *http.Request, logger *slog.Logger) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if logger != nil {
			logger.Error("parse session user id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}

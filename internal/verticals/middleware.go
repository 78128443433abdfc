package verticals

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/versa-platform/versa-core/internal/audit"
	"github.com/versa-platform/versa-core/internal/platform/httpx"
	"github.com/versa-platform/versa-core/internal/tenancy"
)

type bypassedKey struct{}
type wouldBlockKey struct{}

// Bypassed reports whether the vertical gate let the request through on the
// super-admin path.
func Bypassed(ctx context.Context) bool {
	v, _ := ctx.Value(bypassedKey{}).(bool)
	return v
}

// WouldBlock reports whether a log-only gate would have blocked the request.
func WouldBlock(ctx context.Context) bool {
	v, _ := ctx.Value(wouldBlockKey{}).(bool)
	return v
}

// AuditRecorder receives gate events worth keeping.
type AuditRecorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Middleware guards routes behind a required vertical.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
	Audit   AuditRecorder
}

type requireOptions struct {
	logOnly bool
}

// Option adjusts gate behaviour per call site.
type Option func(*requireOptions)

// LogOnly makes the gate record a would-be block instead of rejecting the
// request. Used for staged rollout of new gating rules; never the default.
func LogOnly() Option {
	return func(o *requireOptions) { o.logOnly = true }
}

// Require builds middleware enforcing access to the named vertical.
func (m Middleware) Require(key string, opts ...Option) func(http.Handler) http.Handler {
	options := requireOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sc, ok := tenancy.FromContext(ctx)
			if !ok {
				httpx.ProblemCode(w, http.StatusUnauthorized, httpx.CodeAuthRequired, "Unauthorized", "authentication required")
				return
			}

			if sc.IsSuperAdmin {
				if m.Audit != nil {
					m.Audit.Record(ctx, audit.Event{
						Kind:     audit.EventSuperAdminBypass,
						UserID:   sc.UserID,
						TenantID: sc.TenantID,
						Subject:  key,
						Detail:   "vertical gate",
					})
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, bypassedKey{}, true)))
				return
			}

			err := m.Service.CheckAccess(ctx, sc, key)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			switch {
			case errors.Is(err, ErrNotFound):
				// Unknown key is a caller bug, not a plan restriction; the
				// log-only escape hatch does not apply.
				httpx.ProblemCode(w, http.StatusNotFound, httpx.CodeVerticalNotFound, "Vertical Not Found", "unknown vertical: "+key)
			case errors.Is(err, ErrNotEnabled):
				if options.logOnly {
					if m.Logger != nil {
						m.Logger.Info("vertical gate would block",
							slog.String("vertical", key),
							slog.Int64("user_id", sc.UserID),
							slog.Int64("tenant_id", sc.TenantID))
					}
					if m.Audit != nil {
						m.Audit.Record(ctx, audit.Event{
							Kind:     audit.EventWouldBlock,
							UserID:   sc.UserID,
							TenantID: sc.TenantID,
							Subject:  key,
							Detail:   "vertical gate log-only",
						})
					}
					next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, wouldBlockKey{}, true)))
					return
				}
				httpx.ProblemUpgrade(w, http.StatusForbidden, httpx.CodeVerticalNotEnabled, "Vertical Not Enabled", "vertical not part of the tenant plan: "+key)
			default:
				if m.Logger != nil {
					m.Logger.Error("vertical gate", slog.String("vertical", key), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			}
		})
	}
}

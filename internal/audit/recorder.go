// Package audit persists authorization-relevant events: super-admin
// bypasses and log-only gate hits that would have blocked. The trail exists
// so platform operators can see where the explicit bypass path is exercised
// and which tenants a staged gating rule would lock out.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Event kinds recorded in the authz_audit table.
const (
	EventSuperAdminBypass = "superadmin_bypass"
	EventWouldBlock       = "would_block"
)

// Event describes a single authorization audit entry.
type Event struct {
	Kind       string
	UserID     int64
	TenantID   int64
	Subject    string // permission key or vertical key
	Detail     string
	OccurredAt time.Time
}

// Recorder writes audit events to PostgreSQL. Recording is best-effort:
// a failed insert is logged and never fails the guarded request.
type Recorder struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRecorder constructs a Recorder.
func NewRecorder(pool *pgxpool.Pool, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, logger: logger}
}

// Record persists an event.
func (r *Recorder) Record(ctx context.Context, ev Event) {
	if r == nil || r.pool == nil {
		return
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO authz_audit (kind, user_id, tenant_id, subject, detail, occurred_at)
		 VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6)`,
		ev.Kind, ev.UserID, ev.TenantID, ev.Subject, ev.Detail, ev.OccurredAt,
	)
	if err != nil && r.logger != nil {
		r.logger.Warn("audit record", slog.String("kind", ev.Kind), slog.Any("error", err))
	}
}

// Entry is a persisted audit row.
type Entry struct {
	ID         int64
	Kind       string
	UserID     int64
	TenantID   *int64
	Subject    string
	Detail     string
	OccurredAt time.Time
}

// Recent returns the newest audit entries, capped at limit.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, kind, user_id, tenant_id, subject, detail, occurred_at
		 FROM authz_audit ORDER BY occurred_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Kind, &e.UserID, &e.TenantID, &e.Subject, &e.Detail, &e.OccurredAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

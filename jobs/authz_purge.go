package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/platform/db"
)

const defaultPurgeBatchSize = 1000

// PurgeExpiredOverridesJob deletes permission overrides whose expiry has
// passed. Expired overrides are already inert during resolution; the purge
// keeps the table small and the audit trail readable.
type PurgeExpiredOverridesJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPurgeExpiredOverridesJob constructs the job.
func NewPurgeExpiredOverridesJob(pool *pgxpool.Pool, logger *slog.Logger) *PurgeExpiredOverridesJob {
	return &PurgeExpiredOverridesJob{pool: pool, logger: logger}
}

// Handle processes TaskPurgeExpiredOverrides tasks.
func (j *PurgeExpiredOverridesJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PurgeExpiredOverridesPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	batch := payload.BatchSize
	if batch <= 0 {
		batch = defaultPurgeBatchSize
	}

	const query = `
		DELETE FROM permission_overrides
		WHERE id IN (
			SELECT id FROM permission_overrides
			WHERE expires_at IS NOT NULL AND expires_at < now()
			LIMIT $1
		)`

	// Overrides live behind row-level security; the purge crosses tenants,
	// so it runs with the super-admin binding.
	total := int64(0)
	for {
		var affected int64
		err := db.WithTenantTx(ctx, j.pool, db.TenantBinding{SuperAdmin: true}, func(tx pgx.Tx) error {
			tag, err := tx.Exec(ctx, query, batch)
			if err != nil {
				return err
			}
			affected = tag.RowsAffected()
			return nil
		})
		if err != nil {
			return err
		}
		total += affected
		if affected < int64(batch) {
			break
		}
	}

	if total > 0 {
		j.logger.Info("purged expired overrides", slog.Int64("count", total))
	}
	return nil
}

// SessionSweepJob removes expired rows from the sessions table. Redis expiry
// already ends the session; the row sweep keeps the persistent ledger in step.
type SessionSweepJob struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSessionSweepJob constructs the job.
func NewSessionSweepJob(pool *pgxpool.Pool, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{pool: pool, logger: logger}
}

// Handle processes TaskSessionSweep tasks.
func (j *SessionSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	tag, err := j.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		j.logger.Info("swept expired sessions", slog.Int64("count", tag.RowsAffected()))
	}
	return nil
}

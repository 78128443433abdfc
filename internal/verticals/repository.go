package verticals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/platform/db"
)

// Repository defines persistence operations for the vertical catalog and
// per-tenant enablement.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Vertical, error)
	GetByKey(ctx context.Context, key string) (*Vertical, error)
	List(ctx context.Context) ([]Vertical, error)
	ListEnabledForTenant(ctx context.Context, tenantID int64) ([]Vertical, error)
	TenantEnablement(ctx context.Context, tenantID, verticalID int64) (bool, error)
	SetTenantEnablement(ctx context.Context, tenantID, verticalID int64, enabled bool) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetByID fetches a vertical from the catalog by surrogate key.
func (r *PGRepository) GetByID(ctx context.Context, id int64) (*Vertical, error) {
	var v Vertical
	err := r.pool.QueryRow(ctx,
		`SELECT id, key, name, is_active, display_order FROM verticals WHERE id = $1`,
		id,
	).Scan(&v.ID, &v.Key, &v.Name, &v.IsActive, &v.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// GetByKey fetches a vertical from the catalog.
func (r *PGRepository) GetByKey(ctx context.Context, key string) (*Vertical, error) {
	var v Vertical
	err := r.pool.QueryRow(ctx,
		`SELECT id, key, name, is_active, display_order FROM verticals WHERE key = $1`,
		key,
	).Scan(&v.ID, &v.Key, &v.Name, &v.IsActive, &v.DisplayOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

// List returns the full vertical catalog ordered for display.
func (r *PGRepository) List(ctx context.Context) ([]Vertical, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, key, name, is_active, display_order FROM verticals ORDER BY display_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerticals(rows)
}

// ListEnabledForTenant returns verticals currently enabled for the tenant.
func (r *PGRepository) ListEnabledForTenant(ctx context.Context, tenantID int64) ([]Vertical, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT v.id, v.key, v.name, v.is_active, v.display_order
		 FROM verticals v
		 JOIN tenant_verticals tv ON tv.vertical_id = v.id
		 WHERE tv.tenant_id = $1 AND tv.enabled AND v.is_active
		 ORDER BY v.display_order, v.id`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerticals(rows)
}

// TenantEnablement reports whether the enablement row exists with
// enabled = true. A missing row reads as disabled.
func (r *PGRepository) TenantEnablement(ctx context.Context, tenantID, verticalID int64) (bool, error) {
	var enabled bool
	err := r.pool.QueryRow(ctx,
		`SELECT enabled FROM tenant_verticals WHERE tenant_id = $1 AND vertical_id = $2`,
		tenantID, verticalID,
	).Scan(&enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return enabled, nil
}

// SetTenantEnablement upserts the enablement row, stamping the transition.
// The write runs in a transaction bound to the target tenant so row-level
// security accepts the new row.
func (r *PGRepository) SetTenantEnablement(ctx context.Context, tenantID, verticalID int64, enabled bool) error {
	now := time.Now().UTC()
	var enabledAt, disabledAt *time.Time
	if enabled {
		enabledAt = &now
	} else {
		disabledAt = &now
	}
	return db.WithTenantTx(ctx, r.pool, db.TenantBinding{TenantID: tenantID}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO tenant_verticals (tenant_id, vertical_id, enabled, enabled_at, disabled_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (tenant_id, vertical_id) DO UPDATE SET
			   enabled = EXCLUDED.enabled,
			   enabled_at = COALESCE(EXCLUDED.enabled_at, tenant_verticals.enabled_at),
			   disabled_at = EXCLUDED.disabled_at`,
			tenantID, verticalID, enabled, enabledAt, disabledAt)
		return err
	})
}

func scanVerticals(rows pgx.Rows) ([]Vertical, error) {
	var verticals []Vertical
	for rows.Next() {
		var v Vertical
		if err := rows.Scan(&v.ID, &v.Key, &v.Name, &v.IsActive, &v.DisplayOrder); err != nil {
			return nil, err
		}
		verticals = append(verticals, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return verticals, nil
}

var _ Repository = (*PGRepository)(nil)

package tenants

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListTenants returns all tenants.
func (r *Repository) ListTenants(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_active, created_at, updated_at FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

// GetTenant fetches a tenant by ID.
func (r *Repository) GetTenant(ctx context.Context, id int64) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, is_active, created_at, updated_at FROM tenants WHERE id = $1`, id,
	).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

// CreateTenant inserts a new active tenant.
func (r *Repository) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, is_active) VALUES ($1, true)
		 RETURNING id, name, is_active, created_at, updated_at`, name,
	).Scan(&t.ID, &t.Name, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Tenant{}, err
	}
	return t, nil
}

// SetActive toggles the tenant's active flag. Tenants are soft-disabled,
// never deleted.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tenants SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

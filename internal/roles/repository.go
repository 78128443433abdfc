package roles

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/platform/httpx"
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

// ListRoles returns global roles plus the tenant's own roles.
func (r *Repository) ListRoles(ctx context.Context, tenantID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, scope, tenant_id, level, is_system, created_at, updated_at
		 FROM roles
		 WHERE scope = 'global' OR (scope = 'tenant' AND tenant_id = $1)
		 ORDER BY level DESC, name`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Scope, &role.TenantID, &role.Level, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, scope, tenant_id, level, is_system, created_at, updated_at
		 FROM roles WHERE id = $1`, id,
	).Scan(&role.ID, &role.Name, &role.Scope, &role.TenantID, &role.Level, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, shared.ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new role. Name uniqueness is enforced per scope by
// the database (globally for global roles, per tenant otherwise).
func (r *Repository) CreateRole(ctx context.Context, name, scope string, tenantID *int64, level int) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, scope, tenant_id, level, is_system)
		 VALUES ($1, $2, $3, $4, false)
		 RETURNING id, name, scope, tenant_id, level, is_system, created_at, updated_at`,
		name, scope, tenantID, level,
	).Scan(&role.ID, &role.Name, &role.Scope, &role.TenantID, &role.Level, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Role{}, httpx.ErrDuplicate
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a non-system role. Returns ErrNotFound if nothing was
// deleted.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1 AND NOT is_system`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListRolePermissionIDs returns permission IDs attached to the role.
func (r *Repository) ListRolePermissionIDs(ctx context.Context, roleID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT permission_id FROM role_permissions WHERE role_id = $1`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AttachPermission adds one permission to a role.
func (r *Repository) AttachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`, roleID, permissionID)
	return err
}

// DetachPermission removes one permission from a role.
func (r *Repository) DetachPermission(ctx context.Context, roleID, permissionID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	return err
}

// AssignRole assigns a role to a user, optionally pinned to a tenant.
func (r *Repository) AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id, tenant_id) VALUES ($1, $2, $3)
		 ON CONFLICT DO NOTHING`, userID, roleID, tenantID)
	return err
}

// RemoveRole removes a role assignment from a user.
func (r *Repository) RemoveRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM user_roles
		 WHERE user_id = $1 AND role_id = $2 AND tenant_id IS NOT DISTINCT FROM $3`,
		userID, roleID, tenantID)
	return err
}

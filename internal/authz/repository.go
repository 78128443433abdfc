package authz

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/versa-platform/versa-core/internal/platform/db"
)

// EffectiveOverride is an override joined with its permission key, as
// consumed by the access-info aggregate.
type EffectiveOverride struct {
	PermissionKey string
	Effect        string
}

// Repository defines persistence operations for the resolution engine.
type Repository interface {
	GetPermissionByKey(ctx context.Context, key string) (*Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	FindOverride(ctx context.Context, userID, tenantID, permissionID int64) (*Override, error)
	UpsertOverride(ctx context.Context, o Override) (Override, error)
	DeleteOverride(ctx context.Context, userID, tenantID, permissionID int64) error
	RoleGrantsPermission(ctx context.Context, userID, tenantID, permissionID int64) (bool, error)
	ListGrantedPermissionKeys(ctx context.Context, userID, tenantID int64) ([]string, error)
	ListActiveOverrides(ctx context.Context, userID, tenantID int64, now time.Time) ([]EffectiveOverride, error)
	ListRoleNames(ctx context.Context, userID, tenantID int64) ([]string, error)
	ListBranches(ctx context.Context, tenantID int64) ([]Branch, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// GetPermissionByKey fetches a permission by its canonical key.
func (r *PGRepository) GetPermissionByKey(ctx context.Context, key string) (*Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx,
		`SELECT id, key, name, module, vertical_id FROM permissions WHERE key = $1`,
		key,
	).Scan(&p.ID, &p.Key, &p.Name, &p.Module, &p.VerticalID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListPermissions returns the permission catalog ordered by key.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, key, name, module, vertical_id FROM permissions ORDER BY key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Module, &p.VerticalID); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// FindOverride fetches the override for (user, tenant, permission),
// expired or not; the engine decides whether it is in force.
func (r *PGRepository) FindOverride(ctx context.Context, userID, tenantID, permissionID int64) (*Override, error) {
	var o Override
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, tenant_id, permission_id, effect, reason, created_by, created_at, expires_at
		 FROM permission_overrides
		 WHERE user_id = $1 AND tenant_id = $2 AND permission_id = $3`,
		userID, tenantID, permissionID,
	).Scan(&o.ID, &o.UserID, &o.TenantID, &o.PermissionID, &o.Effect, &o.Reason, &o.CreatedBy, &o.CreatedAt, &o.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &o, nil
}

// UpsertOverride creates or replaces the single override allowed per
// (user, tenant, permission). The write runs in a transaction bound to the
// override's tenant so row-level security accepts the row.
func (r *PGRepository) UpsertOverride(ctx context.Context, o Override) (Override, error) {
	err := db.WithTenantTx(ctx, r.pool, db.TenantBinding{TenantID: o.TenantID}, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx,
			`INSERT INTO permission_overrides (user_id, tenant_id, permission_id, effect, reason, created_by, created_at, expires_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (user_id, tenant_id, permission_id) DO UPDATE SET
			   effect = EXCLUDED.effect,
			   reason = EXCLUDED.reason,
			   created_by = EXCLUDED.created_by,
			   created_at = EXCLUDED.created_at,
			   expires_at = EXCLUDED.expires_at
			 RETURNING id`,
			o.UserID, o.TenantID, o.PermissionID, o.Effect, o.Reason, o.CreatedBy, o.CreatedAt, o.ExpiresAt,
		).Scan(&o.ID)
	})
	if err != nil {
		return Override{}, err
	}
	return o, nil
}

// DeleteOverride removes an override. Missing rows report ErrNotFound.
func (r *PGRepository) DeleteOverride(ctx context.Context, userID, tenantID, permissionID int64) error {
	return db.WithTenantTx(ctx, r.pool, db.TenantBinding{TenantID: tenantID}, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`DELETE FROM permission_overrides WHERE user_id = $1 AND tenant_id = $2 AND permission_id = $3`,
			userID, tenantID, permissionID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// RoleGrantsPermission reports whether any role held by the user grants the
// permission in the given tenant. A role counts when it is global, owned by
// the tenant, or held through an assignment pinned to the tenant; an
// assignment pinned elsewhere never counts.
func (r *PGRepository) RoleGrantsPermission(ctx context.Context, userID, tenantID, permissionID int64) (bool, error) {
	var granted bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM user_roles ur
		   JOIN roles r ON r.id = ur.role_id
		   JOIN role_permissions rp ON rp.role_id = r.id
		   WHERE ur.user_id = $1
		     AND rp.permission_id = $3
		     AND (ur.tenant_id IS NULL OR ur.tenant_id = $2)
		     AND (r.scope = 'global'
		          OR (r.scope = 'tenant' AND r.tenant_id = $2)
		          OR ur.tenant_id = $2)
		 )`,
		userID, tenantID, permissionID,
	).Scan(&granted)
	return granted, err
}

// ListGrantedPermissionKeys returns the role-derived permission keys for a
// user in a tenant, excluding permissions whose owning vertical is not
// enabled for the tenant.
func (r *PGRepository) ListGrantedPermissionKeys(ctx context.Context, userID, tenantID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.key
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 JOIN role_permissions rp ON rp.role_id = r.id
		 JOIN permissions p ON p.id = rp.permission_id
		 LEFT JOIN verticals v ON v.id = p.vertical_id
		 LEFT JOIN tenant_verticals tv ON tv.vertical_id = p.vertical_id AND tv.tenant_id = $2
		 WHERE ur.user_id = $1
		   AND (ur.tenant_id IS NULL OR ur.tenant_id = $2)
		   AND (r.scope = 'global'
		        OR (r.scope = 'tenant' AND r.tenant_id = $2)
		        OR ur.tenant_id = $2)
		   AND (p.vertical_id IS NULL OR (v.is_active AND COALESCE(tv.enabled, false)))
		 ORDER BY p.key`,
		userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListActiveOverrides returns non-expired overrides with their permission
// keys for a (user, tenant) pair. Allow overrides pointing at a permission
// whose vertical is disabled are dropped here, mirroring the engine's
// precedence; deny overrides always come through.
func (r *PGRepository) ListActiveOverrides(ctx context.Context, userID, tenantID int64, now time.Time) ([]EffectiveOverride, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT p.key, o.effect
		 FROM permission_overrides o
		 JOIN permissions p ON p.id = o.permission_id
		 LEFT JOIN verticals v ON v.id = p.vertical_id
		 LEFT JOIN tenant_verticals tv ON tv.vertical_id = p.vertical_id AND tv.tenant_id = $2
		 WHERE o.user_id = $1 AND o.tenant_id = $2
		   AND (o.expires_at IS NULL OR o.expires_at > $3)
		   AND (o.effect = 'deny'
		        OR p.vertical_id IS NULL
		        OR (v.is_active AND COALESCE(tv.enabled, false)))`,
		userID, tenantID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overrides []EffectiveOverride
	for rows.Next() {
		var o EffectiveOverride
		if err := rows.Scan(&o.PermissionKey, &o.Effect); err != nil {
			return nil, err
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// ListRoleNames returns the names of roles the user holds in the tenant.
func (r *PGRepository) ListRoleNames(ctx context.Context, userID, tenantID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT r.name
		 FROM user_roles ur
		 JOIN roles r ON r.id = ur.role_id
		 WHERE ur.user_id = $1
		   AND (ur.tenant_id IS NULL OR ur.tenant_id = $2)
		   AND (r.scope = 'global'
		        OR (r.scope = 'tenant' AND r.tenant_id = $2)
		        OR ur.tenant_id = $2)
		 ORDER BY r.name`,
		userID, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStrings(rows)
}

// ListBranches returns the tenant's workshop locations.
func (r *PGRepository) ListBranches(ctx context.Context, tenantID int64) ([]Branch, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, name FROM branches WHERE tenant_id = $1 ORDER BY name`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Name); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return values, nil
}

var _ Repository = (*PGRepository)(nil)

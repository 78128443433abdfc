package tenancy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalRepository loads the minimal principal record used to build a
// security context.
type PrincipalRepository interface {
	FindPrincipal(ctx context.Context, userID int64) (*Principal, error)
}

// PGPrincipalRepository implements PrincipalRepository using PostgreSQL.
type PGPrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository constructs a PostgreSQL repository.
func NewPrincipalRepository(pool *pgxpool.Pool) *PGPrincipalRepository {
	return &PGPrincipalRepository{pool: pool}
}

// FindPrincipal fetches the principal row by ID.
func (r *PGPrincipalRepository) FindPrincipal(ctx context.Context, userID int64) (*Principal, error) {
	var p Principal
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, is_superadmin, is_active FROM users WHERE id = $1`,
		userID,
	).Scan(&p.ID, &p.TenantID, &p.IsSuperAdmin, &p.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAuthRequired
		}
		return nil, err
	}
	return &p, nil
}

var _ PrincipalRepository = (*PGPrincipalRepository)(nil)

// Resolver builds security contexts from authenticated principals.
type Resolver struct {
	repo PrincipalRepository
}

// NewResolver constructs a Resolver.
func NewResolver(repo PrincipalRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve produces the SecurityContext for an authenticated user ID. The
// result is a pure function of the principal row: the same unchanged input
// always yields an identical context.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (SecurityContext, error) {
	if userID <= 0 {
		return SecurityContext{}, ErrAuthRequired
	}
	principal, err := r.repo.FindPrincipal(ctx, userID)
	if err != nil {
		return SecurityContext{}, err
	}
	if !principal.IsActive {
		return SecurityContext{}, ErrAuthRequired
	}

	sc := SecurityContext{
		UserID:       principal.ID,
		IsSuperAdmin: principal.IsSuperAdmin,
	}
	if principal.TenantID != nil {
		sc.TenantID = *principal.TenantID
	}
	if sc.TenantID == 0 && !sc.IsSuperAdmin {
		return SecurityContext{}, ErrTenantRequired
	}
	return sc, nil
}

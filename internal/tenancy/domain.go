// Package tenancy resolves the per-request security context that every
// downstream authorization decision and row-level-security binding keys on.
package tenancy

import "errors"

var (
	// ErrAuthRequired indicates no authenticated principal is present.
	ErrAuthRequired = errors.New("tenancy: authentication required")
	// ErrTenantRequired indicates the principal has no resolvable tenant
	// and is not a super-admin.
	ErrTenantRequired = errors.New("tenancy: tenant required")
)

// SecurityContext identifies the authenticated principal and the tenant
// scope of the current request. TenantID is zero for tenant-less
// super-admin accounts.
type SecurityContext struct {
	UserID       int64
	TenantID     int64
	IsSuperAdmin bool
}

// Principal is the subset of the user record the resolver needs.
type Principal struct {
	ID           int64
	TenantID     *int64
	IsSuperAdmin bool
	IsActive     bool
}

package roles

import "time"

// Role scopes.
const (
	ScopeGlobal = "global"
	ScopeTenant = "tenant"
)

// Role represents a named permission bundle. Scope is either global or
// tenant; tenant-scoped roles carry their owning tenant.
type Role struct {
	ID        int64
	Name      string
	Scope     string
	TenantID  *int64
	Level     int
	IsSystem  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Assignment ties a user to a role, optionally pinned to one tenant.
type Assignment struct {
	UserID     int64
	RoleID     int64
	TenantID   *int64
	AssignedAt time.Time
}

package users

import "time"

// User represents a platform account. TenantID is nil only for tenant-less
// super-admin accounts.
type User struct {
	ID           int64
	Email        string
	Name         string
	TenantID     *int64
	IsSuperAdmin bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

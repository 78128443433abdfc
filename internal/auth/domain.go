package auth

import "time"

// User is the principal row as the login flow sees it. TenantID is nil for
// platform super-admin accounts, which belong to no tenant; the tenancy
// resolver decides what that means for request scoping.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	TenantID     *int64
	IsSuperAdmin bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

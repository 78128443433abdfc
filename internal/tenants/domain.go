package tenants

import "time"

// Tenant is a billing and isolation boundary.
type Tenant struct {
	ID        int64
	Name      string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

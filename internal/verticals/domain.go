// Package verticals gates access to toggleable product modules
// ("verticals") on a per-tenant basis. A vertical with no enablement row
// for a tenant is disabled for that tenant; new verticals are invisible
// until explicitly switched on.
package verticals

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the vertical key does not exist in the catalog.
	ErrNotFound = errors.New("verticals: not found")
	// ErrNotEnabled indicates the vertical exists but is disabled for the tenant.
	ErrNotEnabled = errors.New("verticals: not enabled for tenant")
)

// Vertical is a toggleable product module.
type Vertical struct {
	ID           int64
	Key          string
	Name         string
	IsActive     bool
	DisplayOrder int
}

// TenantVertical records whether a vertical is enabled for a tenant.
type TenantVertical struct {
	TenantID   int64
	VerticalID int64
	Enabled    bool
	EnabledAt  *time.Time
	DisabledAt *time.Time
}

// Package authz implements the permission resolution engine: the single
// authoritative answer to "may this user perform this action in this
// tenant". Resolution order is fixed and short-circuiting:
//
//  1. super-admin -> allowed
//  2. owning vertical disabled for tenant -> denied
//  3. active deny override -> denied
//  4. active allow override -> allowed
//  5. any role grant -> allowed, otherwise denied
//
// Vertical gating sits above overrides on purpose: a module the tenant does
// not have must stay unreachable even through an explicit allow.
package authz

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("authz: not found")

// Role scopes.
const (
	ScopeGlobal = "global"
	ScopeTenant = "tenant"
)

// Override effects.
const (
	EffectAllow = "allow"
	EffectDeny  = "deny"
)

// Role is a named bundle of permissions, scoped globally or to one tenant.
type Role struct {
	ID       int64
	Name     string
	Scope    string
	TenantID *int64
	Level    int
	IsSystem bool
}

// Permission is an atomic capability identified by a stable key. VerticalID
// is set when the capability belongs to a toggleable product module.
type Permission struct {
	ID         int64
	Key        string
	Name       string
	Module     string
	VerticalID *int64
}

// RoleAssignment ties a user to a role, optionally pinned to one tenant so
// a user can hold the same role independently across tenants.
type RoleAssignment struct {
	UserID     int64
	RoleID     int64
	TenantID   *int64
	AssignedAt time.Time
}

// Override is a per-user, per-tenant exception to the role-derived
// permission set. At most one exists per (user, tenant, permission).
type Override struct {
	ID           int64
	UserID       int64
	TenantID     int64
	PermissionID int64
	Effect       string
	Reason       string
	CreatedBy    int64
	CreatedAt    time.Time
	ExpiresAt    *time.Time
}

// Active reports whether the override is in force at the given instant.
// An expired override behaves identically to one that never existed.
func (o Override) Active(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// Branch is a workshop location, the representative tenant-scoped business
// record surfaced in the access-info aggregate.
type Branch struct {
	ID       int64
	TenantID int64
	Name     string
}

// AccessInfo is the full access picture for one (user, tenant) pair,
// consumed by frontend navigation and the account screen.
type AccessInfo struct {
	Verticals   []string `json:"verticals"`
	Permissions []string `json:"permissions"`
	Roles       []string `json:"roles"`
	Branches    []Branch `json:"branches"`
}

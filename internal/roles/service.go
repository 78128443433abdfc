package roles

import (
	"context"
	"errors"
	"strings"
)

// Service orchestrates role administration.
type Service struct {
	repo *Repository
}

// NewService constructs a Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns global roles plus the tenant's own.
func (s *Service) ListRoles(ctx context.Context, tenantID int64) ([]Role, error) {
	return s.repo.ListRoles(ctx, tenantID)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role, enforcing the scope/tenant invariant: a
// tenant-scoped role must carry its owning tenant and a global role must
// not.
func (s *Service) CreateRole(ctx context.Context, name, scope string, tenantID *int64, level int) (Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Role{}, errors.New("roles: role name required")
	}
	switch scope {
	case ScopeGlobal:
		if tenantID != nil {
			return Role{}, errors.New("roles: global role cannot have an owning tenant")
		}
	case ScopeTenant:
		if tenantID == nil || *tenantID <= 0 {
			return Role{}, errors.New("roles: tenant role requires an owning tenant")
		}
	default:
		return Role{}, errors.New("roles: scope must be global or tenant")
	}
	return s.repo.CreateRole(ctx, name, scope, tenantID, level)
}

// DeleteRole removes a non-system role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.DeleteRole(ctx, id)
}

// SetRolePermissions replaces the role's permission set with the given IDs.
func (s *Service) SetRolePermissions(ctx context.Context, roleID int64, permissionIDs []int64) error {
	current, err := s.repo.ListRolePermissionIDs(ctx, roleID)
	if err != nil {
		return err
	}
	existing := make(map[int64]struct{}, len(current))
	for _, id := range current {
		existing[id] = struct{}{}
	}
	keep := make(map[int64]struct{}, len(permissionIDs))
	for _, id := range permissionIDs {
		keep[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			if err := s.repo.AttachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	for id := range existing {
		if _, ok := keep[id]; !ok {
			if err := s.repo.DetachPermission(ctx, roleID, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// AssignRole assigns a role to the given user, optionally pinned to a
// tenant so the user holds it only there.
func (s *Service) AssignRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	return s.repo.AssignRole(ctx, userID, roleID, tenantID)
}

// RemoveRole removes a role assignment from a user.
func (s *Service) RemoveRole(ctx context.Context, userID, roleID int64, tenantID *int64) error {
	return s.repo.RemoveRole(ctx, userID, roleID, tenantID)
}

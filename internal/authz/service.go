package authz

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/versa-platform/versa-core/internal/audit"
	"github.com/versa-platform/versa-core/internal/tenancy"
	"github.com/versa-platform/versa-core/internal/verticals"
)

// VerticalDirectory is the slice of the vertical gate the engine consumes.
type VerticalDirectory interface {
	EnabledByID(ctx context.Context, tenantID, verticalID int64) (bool, error)
	EnabledForTenant(ctx context.Context, tenantID int64) ([]verticals.Vertical, error)
	List(ctx context.Context) ([]verticals.Vertical, error)
}

// AuditRecorder receives engine events worth keeping.
type AuditRecorder interface {
	Record(ctx context.Context, ev audit.Event)
}

// Service is the permission resolution engine. There is exactly one
// resolution path; every permission question in the platform goes through
// HasPermission.
type Service struct {
	repo       Repository
	principals tenancy.PrincipalRepository
	verticals  VerticalDirectory
	audit      AuditRecorder
}

// NewService constructs the engine.
func NewService(repo Repository, principals tenancy.PrincipalRepository, directory VerticalDirectory, recorder AuditRecorder) *Service {
	return &Service{repo: repo, principals: principals, verticals: directory, audit: recorder}
}

// HasPermission resolves whether the user holds the permission in the
// tenant. See the package comment for the precedence order.
func (s *Service) HasPermission(ctx context.Context, userID, tenantID int64, permKey string) (bool, error) {
	permKey = strings.TrimSpace(permKey)
	if permKey == "" {
		return false, nil
	}

	principal, err := s.principals.FindPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, tenancy.ErrAuthRequired) {
			return false, nil
		}
		return false, err
	}
	if !principal.IsActive {
		return false, nil
	}
	if principal.IsSuperAdmin {
		if s.audit != nil {
			s.audit.Record(ctx, audit.Event{
				Kind:     audit.EventSuperAdminBypass,
				UserID:   userID,
				TenantID: tenantID,
				Subject:  permKey,
				Detail:   "permission check",
			})
		}
		return true, nil
	}

	perm, err := s.repo.GetPermissionByKey(ctx, permKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Unknown permissions are never granted.
			return false, nil
		}
		return false, err
	}

	if perm.VerticalID != nil {
		enabled, err := s.verticals.EnabledByID(ctx, tenantID, *perm.VerticalID)
		if err != nil {
			return false, err
		}
		if !enabled {
			// A disabled module stays unreachable even through an allow
			// override.
			return false, nil
		}
	}

	override, err := s.repo.FindOverride(ctx, userID, tenantID, perm.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return false, err
	}
	if override != nil && override.Active(time.Now().UTC()) {
		switch override.Effect {
		case EffectDeny:
			return false, nil
		case EffectAllow:
			return true, nil
		}
	}

	return s.repo.RoleGrantsPermission(ctx, userID, tenantID, perm.ID)
}

// AccessibleVerticals returns the verticals the user can reach in the
// tenant: every active vertical for super-admins, the tenant's enabled set
// for everyone else.
func (s *Service) AccessibleVerticals(ctx context.Context, userID, tenantID int64) ([]verticals.Vertical, error) {
	principal, err := s.principals.FindPrincipal(ctx, userID)
	if err != nil {
		return nil, err
	}
	if principal.IsSuperAdmin {
		all, err := s.verticals.List(ctx)
		if err != nil {
			return nil, err
		}
		active := make([]verticals.Vertical, 0, len(all))
		for _, v := range all {
			if v.IsActive {
				active = append(active, v)
			}
		}
		return active, nil
	}
	return s.verticals.EnabledForTenant(ctx, tenantID)
}

// BuildUserAccessInfo assembles the full access picture for a (user,
// tenant) pair. The four lookups are independent and fetched concurrently.
func (s *Service) BuildUserAccessInfo(ctx context.Context, userID, tenantID int64) (AccessInfo, error) {
	principal, err := s.principals.FindPrincipal(ctx, userID)
	if err != nil {
		return AccessInfo{}, err
	}

	var (
		verticalList []verticals.Vertical
		permissions  []string
		roleNames    []string
		branches     []Branch
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		verticalList, err = s.AccessibleVerticals(gctx, userID, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		permissions, err = s.effectivePermissions(gctx, principal, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		roleNames, err = s.repo.ListRoleNames(gctx, userID, tenantID)
		return err
	})
	g.Go(func() error {
		var err error
		branches, err = s.repo.ListBranches(gctx, tenantID)
		return err
	})
	if err := g.Wait(); err != nil {
		return AccessInfo{}, err
	}

	info := AccessInfo{
		Verticals:   make([]string, 0, len(verticalList)),
		Permissions: permissions,
		Roles:       roleNames,
		Branches:    branches,
	}
	for _, v := range verticalList {
		info.Verticals = append(info.Verticals, v.Key)
	}
	if info.Permissions == nil {
		info.Permissions = []string{}
	}
	if info.Roles == nil {
		info.Roles = []string{}
	}
	if info.Branches == nil {
		info.Branches = []Branch{}
	}
	return info, nil
}

// effectivePermissions computes the set of permission keys HasPermission
// would grant, without running it per key.
func (s *Service) effectivePermissions(ctx context.Context, principal *tenancy.Principal, tenantID int64) ([]string, error) {
	if principal.IsSuperAdmin {
		all, err := s.repo.ListPermissions(ctx)
		if err != nil {
			return nil, err
		}
		keys := make([]string, 0, len(all))
		for _, p := range all {
			keys = append(keys, p.Key)
		}
		return keys, nil
	}

	granted, err := s.repo.ListGrantedPermissionKeys(ctx, principal.ID, tenantID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.repo.ListActiveOverrides(ctx, principal.ID, tenantID, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(granted))
	for _, key := range granted {
		set[key] = struct{}{}
	}
	for _, o := range overrides {
		if o.Effect == EffectAllow {
			set[o.PermissionKey] = struct{}{}
		}
	}
	// Deny after allow, so a deny always wins.
	for _, o := range overrides {
		if o.Effect == EffectDeny {
			delete(set, o.PermissionKey)
		}
	}

	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// ListPermissions exposes the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// PermissionByKey resolves a catalog entry by canonical key. ErrNotFound
// for keys the catalog does not carry.
func (s *Service) PermissionByKey(ctx context.Context, key string) (*Permission, error) {
	return s.repo.GetPermissionByKey(ctx, strings.TrimSpace(key))
}

// SetOverride installs or replaces a permission override. The effect must
// be allow or deny; a non-nil expiry must be in the future.
func (s *Service) SetOverride(ctx context.Context, o Override) (Override, error) {
	if o.Effect != EffectAllow && o.Effect != EffectDeny {
		return Override{}, errors.New("authz: override effect must be allow or deny")
	}
	now := time.Now().UTC()
	if o.ExpiresAt != nil && !o.ExpiresAt.After(now) {
		return Override{}, errors.New("authz: override expiry must be in the future")
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now
	}
	return s.repo.UpsertOverride(ctx, o)
}

// RemoveOverride deletes a permission override.
func (s *Service) RemoveOverride(ctx context.Context, userID, tenantID, permissionID int64) error {
	return s.repo.DeleteOverride(ctx, userID, tenantID, permissionID)
}

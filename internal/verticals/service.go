package verticals

import (
	"context"
	"errors"
	"strings"

	"github.com/versa-platform/versa-core/internal/tenancy"
)

// Service answers vertical enablement questions.
type Service struct {
	repo       Repository
	principals tenancy.PrincipalRepository
}

// NewService constructs a Service.
func NewService(repo Repository, principals tenancy.PrincipalRepository) *Service {
	return &Service{repo: repo, principals: principals}
}

// TenantHasVertical reports whether the vertical is enabled for the tenant.
// Unknown keys and missing enablement rows both read as disabled.
func (s *Service) TenantHasVertical(ctx context.Context, tenantID int64, key string) (bool, error) {
	vertical, err := s.repo.GetByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !vertical.IsActive {
		return false, nil
	}
	return s.repo.TenantEnablement(ctx, tenantID, vertical.ID)
}

// UserCanAccessVertical reports whether the user may use the vertical in the
// given tenant. Super-admins always can; everyone else defers to the
// tenant's enablement.
func (s *Service) UserCanAccessVertical(ctx context.Context, userID, tenantID int64, key string) (bool, error) {
	principal, err := s.principals.FindPrincipal(ctx, userID)
	if err != nil {
		if errors.Is(err, tenancy.ErrAuthRequired) {
			return false, nil
		}
		return false, err
	}
	if principal.IsSuperAdmin {
		return true, nil
	}
	return s.TenantHasVertical(ctx, tenantID, key)
}

// CheckAccess evaluates the gate for an already-resolved security context.
// It returns ErrNotFound for unknown keys and ErrNotEnabled when the
// vertical is disabled for the tenant, so callers can answer with distinct
// responses.
func (s *Service) CheckAccess(ctx context.Context, sc tenancy.SecurityContext, key string) error {
	if sc.IsSuperAdmin {
		return nil
	}
	vertical, err := s.repo.GetByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		return err
	}
	if !vertical.IsActive {
		return ErrNotEnabled
	}
	enabled, err := s.repo.TenantEnablement(ctx, sc.TenantID, vertical.ID)
	if err != nil {
		return err
	}
	if !enabled {
		return ErrNotEnabled
	}
	return nil
}

// EnabledByID reports enablement for a vertical referenced by surrogate
// key, as used by the permission engine for a permission's owning vertical.
func (s *Service) EnabledByID(ctx context.Context, tenantID, verticalID int64) (bool, error) {
	vertical, err := s.repo.GetByID(ctx, verticalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if !vertical.IsActive {
		return false, nil
	}
	return s.repo.TenantEnablement(ctx, tenantID, vertical.ID)
}

// List returns the vertical catalog.
func (s *Service) List(ctx context.Context) ([]Vertical, error) {
	return s.repo.List(ctx)
}

// EnabledForTenant returns the verticals switched on for a tenant.
func (s *Service) EnabledForTenant(ctx context.Context, tenantID int64) ([]Vertical, error) {
	return s.repo.ListEnabledForTenant(ctx, tenantID)
}

// SetEnablement switches a vertical on or off for a tenant.
func (s *Service) SetEnablement(ctx context.Context, tenantID int64, key string, enabled bool) error {
	vertical, err := s.repo.GetByKey(ctx, strings.TrimSpace(key))
	if err != nil {
		return err
	}
	return s.repo.SetTenantEnablement(ctx, tenantID, vertical.ID, enabled)
}

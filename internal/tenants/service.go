package tenants

import (
	"context"
	"errors"
	"strings"
)

// Service wraps tenant administration rules.
type Service struct {
	repo *Repository
}

// NewService constructs a new Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListTenants returns all tenants.
func (s *Service) ListTenants(ctx context.Context) ([]Tenant, error) {
	return s.repo.ListTenants(ctx)
}

// GetTenant fetches a tenant by ID.
func (s *Service) GetTenant(ctx context.Context, id int64) (Tenant, error) {
	return s.repo.GetTenant(ctx, id)
}

// CreateTenant creates a new tenant.
func (s *Service) CreateTenant(ctx context.Context, name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Tenant{}, errors.New("tenants: name required")
	}
	return s.repo.CreateTenant(ctx, name)
}

// SetActive soft-enables or soft-disables a tenant.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

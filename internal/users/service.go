package users

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Service wraps user administration rules.
type Service struct {
	repo *Repository
}

// NewService constructs a new Service.
func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// ListUsers returns users in the tenant.
func (s *Service) ListUsers(ctx context.Context, tenantID int64) ([]User, error) {
	return s.repo.ListUsers(ctx, tenantID)
}

// GetUser fetches a user by ID.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser creates a tenant-scoped account with a bcrypt password hash.
func (s *Service) CreateUser(ctx context.Context, email, name, password string, tenantID int64) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return User{}, errors.New("users: email required")
	}
	if len(password) < 8 {
		return User{}, errors.New("users: password too short")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, email, strings.TrimSpace(name), string(hash), tenantID)
}

// SetActive enables or disables an account.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetActive(ctx, id, active)
}

package tenancy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPrincipals struct {
	principals map[int64]*Principal
	calls      int
}

func (s *stubPrincipals) FindPrincipal(ctx context.Context, userID int64) (*Principal, error) {
	s.calls++
	p, ok := s.principals[userID]
	if !ok {
		return nil, ErrAuthRequired
	}
	return p, nil
}

func newTestResolver() (*Resolver, *stubPrincipals) {
	tid := int64(5)
	stub := &stubPrincipals{principals: map[int64]*Principal{
		1: {ID: 1, TenantID: &tid, IsActive: true},
		2: {ID: 2, TenantID: &tid, IsActive: false},
		3: {ID: 3, IsSuperAdmin: true, IsActive: true},
		4: {ID: 4, IsActive: true}, // no tenant, not super
	}}
	return NewResolver(stub), stub
}

func TestResolveTenantUser(t *testing.T) {
	resolver, _ := newTestResolver()

	sc, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), sc.UserID)
	assert.Equal(t, int64(5), sc.TenantID)
	assert.False(t, sc.IsSuperAdmin)
}

func TestResolveAnonymous(t *testing.T) {
	resolver, _ := newTestResolver()

	_, err := resolver.Resolve(context.Background(), 0)
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = resolver.Resolve(context.Background(), -3)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestResolveUnknownUser(t *testing.T) {
	resolver, _ := newTestResolver()

	_, err := resolver.Resolve(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestResolveInactiveUser(t *testing.T) {
	resolver, _ := newTestResolver()

	_, err := resolver.Resolve(context.Background(), 2)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestResolveSuperAdminWithoutTenant(t *testing.T) {
	resolver, _ := newTestResolver()

	sc, err := resolver.Resolve(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, sc.IsSuperAdmin)
	assert.Zero(t, sc.TenantID)
}

func TestResolveTenantlessUserRejected(t *testing.T) {
	resolver, _ := newTestResolver()

	_, err := resolver.Resolve(context.Background(), 4)
	assert.ErrorIs(t, err, ErrTenantRequired)
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver, _ := newTestResolver()

	first, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	second, err := resolver.Resolve(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestContextRoundTrip(t *testing.T) {
	sc := SecurityContext{UserID: 1, TenantID: 5}
	ctx := WithContext(context.Background(), sc)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, sc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}

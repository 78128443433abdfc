package verticals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versa-platform/versa-core/internal/tenancy"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type enablementKey struct {
	tenantID, verticalID int64
}

type mockRepo struct {
	byID       map[int64]*Vertical
	byKey      map[string]*Vertical
	enablement map[enablementKey]bool

	enablementErr error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		byID:       make(map[int64]*Vertical),
		byKey:      make(map[string]*Vertical),
		enablement: make(map[enablementKey]bool),
	}
}

func (m *mockRepo) add(v Vertical) {
	stored := v
	m.byID[v.ID] = &stored
	m.byKey[v.Key] = &stored
}

func (m *mockRepo) GetByID(ctx context.Context, id int64) (*Vertical, error) {
	v, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) GetByKey(ctx context.Context, key string) (*Vertical, error) {
	v, ok := m.byKey[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (m *mockRepo) List(ctx context.Context) ([]Vertical, error) {
	var out []Vertical
	for _, v := range m.byID {
		out = append(out, *v)
	}
	return out, nil
}

func (m *mockRepo) ListEnabledForTenant(ctx context.Context, tenantID int64) ([]Vertical, error) {
	var out []Vertical
	for _, v := range m.byID {
		if v.IsActive && m.enablement[enablementKey{tenantID, v.ID}] {
			out = append(out, *v)
		}
	}
	return out, nil
}

func (m *mockRepo) TenantEnablement(ctx context.Context, tenantID, verticalID int64) (bool, error) {
	if m.enablementErr != nil {
		return false, m.enablementErr
	}
	// Missing rows read as disabled, matching the SQL implementation.
	return m.enablement[enablementKey{tenantID, verticalID}], nil
}

func (m *mockRepo) SetTenantEnablement(ctx context.Context, tenantID, verticalID int64, enabled bool) error {
	m.enablement[enablementKey{tenantID, verticalID}] = enabled
	return nil
}

var _ Repository = (*mockRepo)(nil)

type mockPrincipals struct {
	principals map[int64]*tenancy.Principal
}

func (m *mockPrincipals) FindPrincipal(ctx context.Context, userID int64) (*tenancy.Principal, error) {
	p, ok := m.principals[userID]
	if !ok {
		return nil, tenancy.ErrAuthRequired
	}
	return p, nil
}

// ============================================================================
// FIXTURES
// ============================================================================

const testTenant = int64(7)

func newGate() (*Service, *mockRepo) {
	repo := newMockRepo()
	repo.add(Vertical{ID: 1, Key: "taller", Name: "Taller", IsActive: true})
	repo.add(Vertical{ID: 2, Key: "contabilidad", Name: "Contabilidad", IsActive: true})
	repo.add(Vertical{ID: 3, Key: "legacy", Name: "Legacy", IsActive: false})
	repo.enablement[enablementKey{testTenant, 1}] = true

	tid := testTenant
	principals := &mockPrincipals{principals: map[int64]*tenancy.Principal{
		1:  {ID: 1, TenantID: &tid, IsActive: true},
		99: {ID: 99, IsSuperAdmin: true, IsActive: true},
	}}
	return NewService(repo, principals), repo
}

// ============================================================================
// TESTS
// ============================================================================

func TestTenantHasVertical(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.TenantHasVertical(context.Background(), testTenant, "taller")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTenantHasVerticalMissingRowIsDisabled(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.TenantHasVertical(context.Background(), testTenant, "contabilidad")
	require.NoError(t, err)
	assert.False(t, ok, "no enablement row must read as disabled")
}

func TestTenantHasVerticalUnknownKey(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.TenantHasVertical(context.Background(), testTenant, "no-such-vertical")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTenantHasVerticalInactiveCatalogEntry(t *testing.T) {
	svc, repo := newGate()
	repo.enablement[enablementKey{testTenant, 3}] = true

	ok, err := svc.TenantHasVertical(context.Background(), testTenant, "legacy")
	require.NoError(t, err)
	assert.False(t, ok, "a deactivated catalog entry is disabled everywhere")
}

func TestUserCanAccessVerticalSuperAdmin(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.UserCanAccessVertical(context.Background(), 99, testTenant, "contabilidad")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUserCanAccessVerticalUnknownUser(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.UserCanAccessVertical(context.Background(), 12345, testTenant, "taller")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckAccessDistinguishesMissingFromDisabled(t *testing.T) {
	svc, _ := newGate()
	sc := tenancy.SecurityContext{UserID: 1, TenantID: testTenant}

	err := svc.CheckAccess(context.Background(), sc, "no-such-vertical")
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.CheckAccess(context.Background(), sc, "contabilidad")
	assert.ErrorIs(t, err, ErrNotEnabled)

	err = svc.CheckAccess(context.Background(), sc, "taller")
	assert.NoError(t, err)
}

func TestEnabledByID(t *testing.T) {
	svc, _ := newGate()

	ok, err := svc.EnabledByID(context.Background(), testTenant, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.EnabledByID(context.Background(), testTenant, 2)
	require.NoError(t, err)
	assert.False(t, ok)

	// Unknown vertical IDs degrade to disabled rather than erroring.
	ok, err = svc.EnabledByID(context.Background(), testTenant, 555)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetEnablementRoundTrip(t *testing.T) {
	svc, _ := newGate()

	require.NoError(t, svc.SetEnablement(context.Background(), testTenant, "contabilidad", true))
	ok, err := svc.TenantHasVertical(context.Background(), testTenant, "contabilidad")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, svc.SetEnablement(context.Background(), testTenant, "contabilidad", false))
	ok, err = svc.TenantHasVertical(context.Background(), testTenant, "contabilidad")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetEnablementUnknownKey(t *testing.T) {
	svc, _ := newGate()

	err := svc.SetEnablement(context.Background(), testTenant, "no-such-vertical", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

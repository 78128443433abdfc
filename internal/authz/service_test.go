package authz

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versa-platform/versa-core/internal/audit"
	"github.com/versa-platform/versa-core/internal/tenancy"
	"github.com/versa-platform/versa-core/internal/verticals"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type overrideKey struct {
	userID, tenantID, permissionID int64
}

type grantKey struct {
	userID, tenantID, permissionID int64
}

type mockRepository struct {
	permissions map[string]*Permission
	overrides   map[overrideKey]*Override
	grants      map[grantKey]bool
	grantedKeys map[int64][]string
	activeOvr   map[int64][]EffectiveOverride
	roleNames   map[int64][]string
	branches    map[int64][]Branch

	findOverrideErr error
	roleGrantErr    error
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		permissions: make(map[string]*Permission),
		overrides:   make(map[overrideKey]*Override),
		grants:      make(map[grantKey]bool),
		grantedKeys: make(map[int64][]string),
		activeOvr:   make(map[int64][]EffectiveOverride),
		roleNames:   make(map[int64][]string),
		branches:    make(map[int64][]Branch),
	}
}

func (m *mockRepository) GetPermissionByKey(ctx context.Context, key string) (*Permission, error) {
	p, ok := m.permissions[key]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	var perms []Permission
	for _, p := range m.permissions {
		perms = append(perms, *p)
	}
	return perms, nil
}

func (m *mockRepository) FindOverride(ctx context.Context, userID, tenantID, permissionID int64) (*Override, error) {
	if m.findOverrideErr != nil {
		return nil, m.findOverrideErr
	}
	o, ok := m.overrides[overrideKey{userID, tenantID, permissionID}]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockRepository) UpsertOverride(ctx context.Context, o Override) (Override, error) {
	o.ID = int64(len(m.overrides) + 1)
	stored := o
	m.overrides[overrideKey{o.UserID, o.TenantID, o.PermissionID}] = &stored
	return o, nil
}

func (m *mockRepository) DeleteOverride(ctx context.Context, userID, tenantID, permissionID int64) error {
	key := overrideKey{userID, tenantID, permissionID}
	if _, ok := m.overrides[key]; !ok {
		return ErrNotFound
	}
	delete(m.overrides, key)
	return nil
}

func (m *mockRepository) RoleGrantsPermission(ctx context.Context, userID, tenantID, permissionID int64) (bool, error) {
	if m.roleGrantErr != nil {
		return false, m.roleGrantErr
	}
	return m.grants[grantKey{userID, tenantID, permissionID}], nil
}

func (m *mockRepository) ListGrantedPermissionKeys(ctx context.Context, userID, tenantID int64) ([]string, error) {
	return m.grantedKeys[userID], nil
}

func (m *mockRepository) ListActiveOverrides(ctx context.Context, userID, tenantID int64, now time.Time) ([]EffectiveOverride, error) {
	return m.activeOvr[userID], nil
}

func (m *mockRepository) ListRoleNames(ctx context.Context, userID, tenantID int64) ([]string, error) {
	return m.roleNames[userID], nil
}

func (m *mockRepository) ListBranches(ctx context.Context, tenantID int64) ([]Branch, error) {
	return m.branches[tenantID], nil
}

var _ Repository = (*mockRepository)(nil)

// ============================================================================
// MOCK COLLABORATORS
// ============================================================================

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

type mockDirectory struct {
	enabled map[int64]bool // keyed by vertical ID, same answer for any tenant
	catalog []verticals.Vertical
}

func (m *mockDirectory) EnabledByID(ctx context.Context, tenantID, verticalID int64) (bool, error) {
	return m.enabled[verticalID], nil
}

func (m *mockDirectory) EnabledForTenant(ctx context.Context, tenantID int64) ([]verticals.Vertical, error) {
	var out []verticals.Vertical
	for _, v := range m.catalog {
		if m.enabled[v.ID] {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *mockDirectory) List(ctx context.Context) ([]verticals.Vertical, error) {
	return m.catalog, nil
}

type mockRecorder struct {
	events []audit.Event
}

func (m *mockRecorder) Record(ctx context.Context, ev audit.Event) {
	m.events = append(m.events, ev)
}

// ============================================================================
// FIXTURES
// ============================================================================

const (
	tenantID   = int64(10)
	userID     = int64(1)
	superID    = int64(99)
	tallerID   = int64(3)
	contabID   = int64(4)
	permOrders = int64(100)
	permExport = int64(101)
)

func tenantPtr(id int64) *int64 { return &id }

func newEngine() (*Service, *mockRepository, *mockDirectory, *mockRecorder) {
	repo := newMockRepository()
	repo.permissions["taller.ordenes.view"] = &Permission{ID: permOrders, Key: "taller.ordenes.view", Module: "taller", VerticalID: tenantPtr(tallerID)}
	repo.permissions["contabilidad.export"] = &Permission{ID: permExport, Key: "contabilidad.export", Module: "contabilidad", VerticalID: tenantPtr(contabID)}
	repo.permissions["users.view"] = &Permission{ID: 102, Key: "users.view", Module: "users"}

	principals := &mockPrincipals{principals: map[int64]*tenancy.Principal{
		userID:  {ID: userID, TenantID: tenantPtr(tenantID), IsActive: true},
		superID: {ID: superID, IsSuperAdmin: true, IsActive: true},
	}}

	directory := &mockDirectory{
		enabled: map[int64]bool{tallerID: true},
		catalog: []verticals.Vertical{
			{ID: tallerID, Key: "taller", IsActive: true},
			{ID: contabID, Key: "contabilidad", IsActive: true},
		},
	}
	recorder := &mockRecorder{}
	return NewService(repo, principals, directory, recorder), repo, directory, recorder
}

// ============================================================================
// HAS PERMISSION
// ============================================================================

func TestHasPermissionRoleGrant(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionNoGrant(t *testing.T) {
	svc, _, _, _ := newEngine()

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionUnknownKeyNeverGranted(t *testing.T) {
	svc, _, _, _ := newEngine()

	ok, err := svc.HasPermission(context.Background(), superID, tenantID, "")
	require.NoError(t, err)
	assert.False(t, ok, "empty key must resolve to false even for super admins")

	ok, err = svc.HasPermission(context.Background(), userID, tenantID, "no.such.permission")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionSuperAdminBypass(t *testing.T) {
	svc, _, _, recorder := newEngine()

	ok, err := svc.HasPermission(context.Background(), superID, tenantID, "contabilidad.export")
	require.NoError(t, err)
	assert.True(t, ok, "super admin bypasses vertical gating and grants")

	require.Len(t, recorder.events, 1)
	assert.Equal(t, audit.EventSuperAdminBypass, recorder.events[0].Kind)
	assert.Equal(t, "contabilidad.export", recorder.events[0].Subject)
}

func TestHasPermissionDisabledVerticalBeatsAllowOverride(t *testing.T) {
	svc, repo, _, _ := newEngine()
	// contabilidad is not enabled for the tenant; an allow override exists.
	repo.overrides[overrideKey{userID, tenantID, permExport}] = &Override{
		UserID: userID, TenantID: tenantID, PermissionID: permExport, Effect: EffectAllow,
	}
	repo.grants[grantKey{userID, tenantID, permExport}] = true

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "contabilidad.export")
	require.NoError(t, err)
	assert.False(t, ok, "a disabled vertical must win over allow overrides and grants")
}

func TestHasPermissionDenyOverrideBeatsRoleGrant(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true
	repo.overrides[overrideKey{userID, tenantID, permOrders}] = &Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders, Effect: EffectDeny,
	}

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionAllowOverrideWithoutGrant(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.overrides[overrideKey{userID, tenantID, permOrders}] = &Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders, Effect: EffectAllow,
	}

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionExpiredOverrideIsInert(t *testing.T) {
	svc, repo, _, _ := newEngine()
	past := time.Now().UTC().Add(-time.Hour)
	repo.overrides[overrideKey{userID, tenantID, permOrders}] = &Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders,
		Effect: EffectAllow, ExpiresAt: &past,
	}

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.False(t, ok, "an expired allow override behaves as if it never existed")

	// An expired deny no longer blocks a role grant either.
	repo.overrides[overrideKey{userID, tenantID, permOrders}].Effect = EffectDeny
	repo.grants[grantKey{userID, tenantID, permOrders}] = true
	ok, err = svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHasPermissionUnknownUser(t *testing.T) {
	svc, _, _, _ := newEngine()

	ok, err := svc.HasPermission(context.Background(), 12345, tenantID, "users.view")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionInactiveUser(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true

	principals := &mockPrincipals{principals: map[int64]*tenancy.Principal{
		userID: {ID: userID, TenantID: tenantPtr(tenantID), IsActive: false},
	}}
	svc.principals = principals

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHasPermissionInfrastructureErrorPropagates(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.roleGrantErr = assert.AnError

	ok, err := svc.HasPermission(context.Background(), userID, tenantID, "taller.ordenes.view")
	require.Error(t, err)
	assert.False(t, ok)
}

// ============================================================================
// ACCESS INFO
// ============================================================================

func TestBuildUserAccessInfoZeroAssignments(t *testing.T) {
	svc, _, _, _ := newEngine()

	info, err := svc.BuildUserAccessInfo(context.Background(), userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"taller"}, info.Verticals)
	assert.Empty(t, info.Permissions)
	assert.NotNil(t, info.Permissions, "empty slices must encode as [], not null")
	assert.NotNil(t, info.Roles)
	assert.NotNil(t, info.Branches)
}

func TestBuildUserAccessInfoAggregatesOverrides(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grantedKeys[userID] = []string{"taller.ordenes.view", "taller.citas.view"}
	repo.activeOvr[userID] = []EffectiveOverride{
		{PermissionKey: "users.view", Effect: EffectAllow},
		{PermissionKey: "taller.citas.view", Effect: EffectDeny},
	}
	repo.roleNames[userID] = []string{"jefe_taller"}
	repo.branches[tenantID] = []Branch{{ID: 1, TenantID: tenantID, Name: "Central"}}

	info, err := svc.BuildUserAccessInfo(context.Background(), userID, tenantID)
	require.NoError(t, err)
	assert.Equal(t, []string{"taller.ordenes.view", "users.view"}, info.Permissions)
	assert.Equal(t, []string{"jefe_taller"}, info.Roles)
	require.Len(t, info.Branches, 1)
	assert.Equal(t, "Central", info.Branches[0].Name)
}

func TestBuildUserAccessInfoSuperAdmin(t *testing.T) {
	svc, _, _, _ := newEngine()

	info, err := svc.BuildUserAccessInfo(context.Background(), superID, tenantID)
	require.NoError(t, err)
	// Super admins see every active vertical and every catalog permission.
	assert.ElementsMatch(t, []string{"taller", "contabilidad"}, info.Verticals)
	assert.Len(t, info.Permissions, 3)
}

func TestPermissionByKey(t *testing.T) {
	svc, _, _, _ := newEngine()

	perm, err := svc.PermissionByKey(context.Background(), " taller.ordenes.view ")
	require.NoError(t, err)
	assert.Equal(t, permOrders, perm.ID)

	_, err = svc.PermissionByKey(context.Background(), "no.such.permission")
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// OVERRIDE MANAGEMENT
// ============================================================================

func TestSetOverrideValidatesEffect(t *testing.T) {
	svc, _, _, _ := newEngine()

	_, err := svc.SetOverride(context.Background(), Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders, Effect: "maybe",
	})
	require.Error(t, err)
}

func TestSetOverrideRejectsPastExpiry(t *testing.T) {
	svc, _, _, _ := newEngine()
	past := time.Now().UTC().Add(-time.Minute)

	_, err := svc.SetOverride(context.Background(), Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders,
		Effect: EffectDeny, ExpiresAt: &past,
	})
	require.Error(t, err)
}

func TestSetOverrideReplacesExisting(t *testing.T) {
	svc, repo, _, _ := newEngine()

	_, err := svc.SetOverride(context.Background(), Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders, Effect: EffectAllow,
	})
	require.NoError(t, err)

	_, err = svc.SetOverride(context.Background(), Override{
		UserID: userID, TenantID: tenantID, PermissionID: permOrders, Effect: EffectDeny,
	})
	require.NoError(t, err)

	stored := repo.overrides[overrideKey{userID, tenantID, permOrders}]
	require.NotNil(t, stored)
	assert.Equal(t, EffectDeny, stored.Effect)
}

func TestRemoveOverrideMissing(t *testing.T) {
	svc, _, _, _ := newEngine()

	err := svc.RemoveOverride(context.Background(), userID, tenantID, permOrders)
	assert.ErrorIs(t, err, ErrNotFound)
}

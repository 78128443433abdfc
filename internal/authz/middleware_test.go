package authz

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versa-platform/versa-core/internal/tenancy"
)

func guardRequest(t *testing.T, mw func(http.Handler) http.Handler, sc *tenancy.SecurityContext) *httptest.ResponseRecorder {
	t.Helper()
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if sc != nil {
		req = req.WithContext(tenancy.WithContext(req.Context(), *sc))
	}
	res := httptest.NewRecorder()
	mw(next).ServeHTTP(res, req)
	return res
}

func TestRequireAnyAllowsGrantedPermission(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("taller.ordenes.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyDeniesWithoutGrant(t *testing.T) {
	svc, _, _, _ := newEngine()
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("taller.ordenes.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireAnyAcceptsAnyOfSeveral(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("users.view", "taller.ordenes.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnyWithoutSecurityContext(t *testing.T) {
	svc, _, _, _ := newEngine()
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("users.view"), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestRequireAnyInfrastructureFailureIsNotDenial(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.roleGrantErr = assert.AnError
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("taller.ordenes.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusInternalServerError, res.Code)
}

func TestRequireAllNeedsEveryPermission(t *testing.T) {
	svc, repo, _, _ := newEngine()
	repo.grants[grantKey{userID, tenantID, permOrders}] = true
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAll("taller.ordenes.view", "users.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusForbidden, res.Code)

	repo.grants[grantKey{userID, tenantID, 102}] = true
	res = guardRequest(t, mw.RequireAll("taller.ordenes.view", "users.view"), &tenancy.SecurityContext{UserID: userID, TenantID: tenantID})
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireAnySuperAdmin(t *testing.T) {
	svc, _, _, recorder := newEngine()
	mw := Middleware{Service: svc}

	res := guardRequest(t, mw.RequireAny("contabilidad.export"), &tenancy.SecurityContext{UserID: superID, IsSuperAdmin: true})
	assert.Equal(t, http.StatusOK, res.Code)
	require.Len(t, recorder.events, 1)
}

func TestNormalizePermissions(t *testing.T) {
	got := normalizePermissions([]string{" Users.View ", "users.view", "", "ROLES.EDIT"})
	assert.Equal(t, []string{"users.view", "roles.edit"}, got)
}

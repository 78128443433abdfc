package verticals

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/versa-platform/versa-core/internal/audit"
	"github.com/versa-platform/versa-core/internal/tenancy"
)

type captureRecorder struct {
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, ev audit.Event) {
	c.events = append(c.events, ev)
}

func gateRequest(t *testing.T, mw func(http.Handler) http.Handler, sc *tenancy.SecurityContext) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	var captured *http.Request
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/taller/ordenes", nil)
	if sc != nil {
		req = req.WithContext(tenancy.WithContext(req.Context(), *sc))
	}
	res := httptest.NewRecorder()
	mw(next).ServeHTTP(res, req)
	return res, captured
}

func problemCode(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.Code
}

func TestGateAllowsEnabledVertical(t *testing.T) {
	svc, _ := newGate()
	mw := Middleware{Service: svc}

	res, captured := gateRequest(t, mw.Require("taller"), &tenancy.SecurityContext{UserID: 1, TenantID: testTenant})
	assert.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, captured)
	assert.False(t, Bypassed(captured.Context()))
	assert.False(t, WouldBlock(captured.Context()))
}

func TestGateRequiresAuthentication(t *testing.T) {
	svc, _ := newGate()
	mw := Middleware{Service: svc}

	res, captured := gateRequest(t, mw.Require("taller"), nil)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Nil(t, captured)
	assert.Equal(t, "AUTH_REQUIRED", problemCode(t, res))
}

func TestGateBlocksDisabledVertical(t *testing.T) {
	svc, _ := newGate()
	mw := Middleware{Service: svc}

	res, captured := gateRequest(t, mw.Require("contabilidad"), &tenancy.SecurityContext{UserID: 1, TenantID: testTenant})
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.Nil(t, captured)
	assert.Equal(t, "VERTICAL_NOT_ENABLED", problemCode(t, res))

	var body struct {
		Upgrade bool `json:"upgrade"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.True(t, body.Upgrade, "denied plan responses carry an upgrade hint")
}

func TestGateUnknownVerticalIsNotFound(t *testing.T) {
	svc, _ := newGate()
	mw := Middleware{Service: svc}

	// Unknown keys 404 even in log-only mode.
	res, captured := gateRequest(t, mw.Require("no-such-vertical", LogOnly()), &tenancy.SecurityContext{UserID: 1, TenantID: testTenant})
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.Nil(t, captured)
	assert.Equal(t, "VERTICAL_NOT_FOUND", problemCode(t, res))
}

func TestGateLogOnlyAnnotatesInsteadOfBlocking(t *testing.T) {
	svc, _ := newGate()
	recorder := &captureRecorder{}
	mw := Middleware{Service: svc, Audit: recorder}

	res, captured := gateRequest(t, mw.Require("contabilidad", LogOnly()), &tenancy.SecurityContext{UserID: 1, TenantID: testTenant})
	assert.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, captured)
	assert.True(t, WouldBlock(captured.Context()))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, audit.EventWouldBlock, recorder.events[0].Kind)
	assert.Equal(t, "contabilidad", recorder.events[0].Subject)
}

func TestGateSuperAdminBypassIsAudited(t *testing.T) {
	svc, _ := newGate()
	recorder := &captureRecorder{}
	mw := Middleware{Service: svc, Audit: recorder}

	res, captured := gateRequest(t, mw.Require("contabilidad"), &tenancy.SecurityContext{UserID: 99, IsSuperAdmin: true})
	assert.Equal(t, http.StatusOK, res.Code)
	require.NotNil(t, captured)
	assert.True(t, Bypassed(captured.Context()))

	require.Len(t, recorder.events, 1)
	assert.Equal(t, audit.EventSuperAdminBypass, recorder.events[0].Kind)
}

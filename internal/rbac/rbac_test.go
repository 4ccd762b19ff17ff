package rbac_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mind-engage/masterclass/internal/rbac"
)

func TestChecker_DefaultPolicy(t *testing.T) {
	c := rbac.NewChecker(nil)

	require.True(t, c.Has(rbac.RoleStudent, rbac.PermTestTake))
	require.True(t, c.Has(rbac.RoleStudent, rbac.PermMaterialDownload))
	require.False(t, c.Has(rbac.RoleStudent, rbac.PermQuestionManage))
	require.False(t, c.Has(rbac.RoleStudent, rbac.PermTestViewAll))
	require.True(t, c.Has(rbac.RoleAdmin, rbac.PermQuestionManage))
	require.False(t, c.Has("", rbac.PermTestTake))
	require.False(t, c.Has("guest", rbac.PermTestTake))
}

func TestChecker_Wildcards(t *testing.T) {
	c := rbac.NewChecker(map[string][]string{"editor": {"question:*"}})

	require.True(t, c.Has("editor", "question:manage"))
	require.False(t, c.Has("editor", "material:upload"))
	require.True(t, c.Any("editor", "material:upload", "question:import"))
	require.False(t, c.Any("editor", "material:upload", "session:manage"))
}

func serve(mw func(http.Handler) http.Handler, role string) int {
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if role != "" {
		r = r.WithContext(rbac.WithRole(context.Background(), role))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec.Code
}

func TestRequire(t *testing.T) {
	require.Equal(t, http.StatusNoContent, serve(rbac.Require(rbac.PermTestTake), rbac.RoleStudent))
	require.Equal(t, http.StatusForbidden, serve(rbac.Require(rbac.PermQuestionManage), rbac.RoleStudent))
	require.Equal(t, http.StatusForbidden, serve(rbac.Require(rbac.PermTestTake), ""))
	require.Equal(t, http.StatusNoContent, serve(rbac.RequireAny(rbac.PermQuestionManage, rbac.PermDashboardView), rbac.RoleStudent))
}

func TestAllowed(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.False(t, rbac.Allowed(r, rbac.PermTestViewAll))

	r = r.WithContext(rbac.WithRole(context.Background(), rbac.RoleStudent))
	require.False(t, rbac.Allowed(r, rbac.PermTestViewAll))
	require.True(t, rbac.Allowed(r, rbac.PermTestViewOwn))

	r = r.WithContext(rbac.WithRole(context.Background(), rbac.RoleAdmin))
	require.True(t, rbac.Allowed(r, rbac.PermTestViewAll))
}

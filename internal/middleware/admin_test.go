package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/internal/service"
)

func adminRouter(codec *service.TokenCodec, opsKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", RequireAdmin(codec, opsKey), func(c *gin.Context) {
		claims := c.MustGet(ContextAdminKey).(*models.AdminClaims)
		c.JSON(http.StatusOK, gin.H{"adminId": claims.AdminID})
	})
	return r
}

func TestRequireAdminValidToken(t *testing.T) {
	codec := testCodec()
	r := adminRouter(codec, "")

	token, err := codec.IssueAdminAccess(&models.Admin{ID: "a1", Email: "admin@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a1")
}

func TestRequireAdminWrongRoleIsForbidden(t *testing.T) {
	codec := testCodec()
	r := adminRouter(codec, "")

	// Correctly signed token, wrong role: a 403, not a 401.
	token, err := codec.IssueAdminAccess(&models.Admin{ID: "a2", Email: "editor@example.com", Role: "editor"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "admin access required")
}

func TestRequireAdminUserTokenRejected(t *testing.T) {
	codec := testCodec()
	r := adminRouter(codec, "")

	token, err := codec.IssueUserAccess(&models.User{ID: "u1", Email: "user@example.com"})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminNoToken(t *testing.T) {
	r := adminRouter(testCodec(), "")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminOpsKeyBypass(t *testing.T) {
	r := adminRouter(testCodec(), "ops-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(OpsKeyHeader, "ops-secret")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops")
}

func TestRequireAdminOpsKeyWrongValue(t *testing.T) {
	r := adminRouter(testCodec(), "ops-secret")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(OpsKeyHeader, "wrong")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdminOpsKeyDisabledWhenUnset(t *testing.T) {
	r := adminRouter(testCodec(), "")

	// With no key configured the header is ignored entirely, even when empty
	// strings would otherwise compare equal.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set(OpsKeyHeader, "")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

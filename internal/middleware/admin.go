package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"

	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/internal/service"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
	"github.com/drivehub/drivehub-auth-api/pkg/response"
)

// ContextAdminKey is the gin context key storing verified admin claims.
const ContextAdminKey = "currentAdmin"

// AdminTokenCookie is the browser-side carrier for admin access tokens.
const AdminTokenCookie = "admin_token"

// OpsKeyHeader is the legacy operational escape hatch: a fixed shared secret
// for internal tooling, distinct from the JWT path and revocable on its own.
// Keep it narrow; it is not a second tier of admin semantics.
const OpsKeyHeader = "X-Admin-Key"

// RequireAdmin gates a route on a valid admin access token whose role claim
// equals "admin" exactly. A correctly signed token with any other role is a
// 403, not a 401.
func RequireAdmin(codec *service.TokenCodec, opsKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if opsKey != "" {
			presented := c.GetHeader(OpsKeyHeader)
			if presented != "" && subtle.ConstantTimeCompare([]byte(presented), []byte(opsKey)) == 1 {
				c.Set(ContextAdminKey, &models.AdminClaims{AdminID: "ops", Role: models.RoleAdmin})
				c.Next()
				return
			}
		}

		token := ExtractToken(c, AdminTokenCookie)
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		claims, err := codec.VerifyAdminAccess(token)
		if err != nil {
			if err == service.ErrTokenExpired {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "admin token expired"))
			} else {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid admin token"))
			}
			c.Abort()
			return
		}

		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "admin access required"))
			c.Abort()
			return
		}

		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}

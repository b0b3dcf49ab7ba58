package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/drivehub/drivehub-auth-api/internal/service"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
	"github.com/drivehub/drivehub-auth-api/pkg/response"
)

// ContextUserKey is the gin context key storing verified user claims.
const ContextUserKey = "currentUser"

// AccessTokenCookie is the browser-side carrier for user access tokens.
const AccessTokenCookie = "access_token"

// RefreshTokenCookie is the browser-side carrier for refresh tokens. The
// cookie path is scoped to the auth routes.
const RefreshTokenCookie = "refresh_token"

// RequireUser gates a route on a valid user access token, taken from the
// Authorization header or the access_token cookie. Verification is purely
// signature+expiry; the refresh ledger is never consulted here.
func RequireUser(codec *service.TokenCodec) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c, AccessTokenCookie)
		if token == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "authentication required"))
			c.Abort()
			return
		}

		claims, err := codec.VerifyUserAccess(token)
		if err != nil {
			if err == service.ErrTokenExpired {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "access token expired"))
			} else {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid access token"))
			}
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ExtractToken pulls a bearer token from the Authorization header, falling
// back to the named cookie for browser clients.
func ExtractToken(c *gin.Context, cookieName string) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}

	if cookie, err := c.Cookie(cookieName); err == nil {
		return cookie
	}
	return ""
}

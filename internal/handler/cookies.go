package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/drivehub/drivehub-auth-api/internal/middleware"
	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/pkg/config"
)

// CookieWriter mirrors issued tokens into browser cookies. Non-browser
// clients ignore these and use the response body instead; both carriers are
// populated on every successful auth response.
type CookieWriter struct {
	production bool
	authPath   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	adminTTL   time.Duration
}

// NewCookieWriter derives cookie policy from configuration. The refresh
// cookie is scoped to the auth route prefix so it never rides along on
// ordinary API requests.
func NewCookieWriter(cfg *config.Config) *CookieWriter {
	return &CookieWriter{
		production: cfg.Env == config.EnvProduction,
		authPath:   cfg.APIPrefix + "/auth",
		accessTTL:  cfg.JWT.AccessExpiration,
		refreshTTL: cfg.JWT.RefreshExpiration,
		adminTTL:   cfg.JWT.AdminExpiration,
	}
}

// SetSession writes the access and refresh cookies for a user session.
func (w *CookieWriter) SetSession(c *gin.Context, tokens models.TokenPair) {
	w.set(c, middleware.AccessTokenCookie, tokens.AccessToken, w.accessTTL, "/")
	w.set(c, middleware.RefreshTokenCookie, tokens.RefreshToken, w.refreshTTL, w.authPath)
}

// ClearSession expires both user session cookies.
func (w *CookieWriter) ClearSession(c *gin.Context) {
	w.set(c, middleware.AccessTokenCookie, "", -time.Second, "/")
	w.set(c, middleware.RefreshTokenCookie, "", -time.Second, w.authPath)
}

// SetAdmin writes the admin token cookie.
func (w *CookieWriter) SetAdmin(c *gin.Context, token string) {
	w.set(c, middleware.AdminTokenCookie, token, w.adminTTL, "/")
}

func (w *CookieWriter) set(c *gin.Context, name, value string, ttl time.Duration, path string) {
	// Cross-site browser clients need SameSite=None, which in turn requires
	// Secure; outside production Lax keeps local HTTP development working.
	if w.production {
		c.SetSameSite(http.SameSiteNoneMode)
	} else {
		c.SetSameSite(http.SameSiteLaxMode)
	}
	c.SetCookie(name, value, int(ttl.Seconds()), path, "", w.production, true)
}

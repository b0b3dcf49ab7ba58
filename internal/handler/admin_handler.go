package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/drivehub/drivehub-auth-api/internal/middleware"
	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/internal/service"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
	"github.com/drivehub/drivehub-auth-api/pkg/response"
)

// AdminHandler wires the admin-panel auth endpoints.
type AdminHandler struct {
	service *service.AdminService
	cookies *CookieWriter
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(svc *service.AdminService, cookies *CookieWriter) *AdminHandler {
	return &AdminHandler{service: svc, cookies: cookies}
}

// Login authenticates an admin account.
func (h *AdminHandler) Login(c *gin.Context) {
	var req models.AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetAdmin(c, res.Token)
	response.OK(c, gin.H{
		"token": res.Token,
		"admin": res.Admin,
	})
}

// Me returns the authenticated admin derived from the verified claims.
func (h *AdminHandler) Me(c *gin.Context) {
	value, ok := c.Get(middleware.ContextAdminKey)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	claims, ok := value.(*models.AdminClaims)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	response.OK(c, gin.H{
		"admin": models.AdminInfo{ID: claims.AdminID, Email: claims.Email, Role: claims.Role},
	})
}

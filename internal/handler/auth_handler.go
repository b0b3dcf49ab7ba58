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

// forgotPasswordMessage is returned whether or not the email is registered.
const forgotPasswordMessage = "if that email is registered, a reset code has been sent"

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service *service.AuthService
	cookies *CookieWriter
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, cookies *CookieWriter) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies}
}

// Login authenticates by email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid login payload"))
		return
	}

	res, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, res.Tokens)
	response.OK(c, gin.H{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

// Register creates an account and signs it in.
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid registration payload"))
		return
	}

	res, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, res.Tokens)
	response.Created(c, gin.H{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

// Google signs in with a client-supplied Google profile.
func (h *AuthHandler) Google(c *gin.Context) {
	var req models.GoogleSignInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid google sign-in payload"))
		return
	}

	res, err := h.service.GoogleSignIn(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, res.Tokens)
	response.OK(c, gin.H{
		"user":         res.User,
		"accessToken":  res.Tokens.AccessToken,
		"refreshToken": res.Tokens.RefreshToken,
	})
}

// Refresh rotates a refresh token taken from the body or the cookie.
func (h *AuthHandler) Refresh(c *gin.Context) {
	token := h.presentedRefreshToken(c)
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token required"))
		return
	}

	tokens, err := h.service.Refresh(c.Request.Context(), token)
	if err != nil {
		h.cookies.ClearSession(c)
		response.Error(c, err)
		return
	}

	h.cookies.SetSession(c, tokens)
	response.OK(c, gin.H{
		"accessToken":  tokens.AccessToken,
		"refreshToken": tokens.RefreshToken,
	})
}

// Logout revokes the presented refresh token, if any, and always succeeds.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.service.Logout(c.Request.Context(), h.presentedRefreshToken(c))
	h.cookies.ClearSession(c)
	response.OK(c, nil)
}

// LogoutAll revokes every session of the authenticated user.
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.LogoutAll(c.Request.Context(), claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	h.cookies.ClearSession(c)
	response.OK(c, nil)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.service.Me(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"user": user.Info()})
}

// UpdateProfile applies a partial update to the authenticated user's profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid profile payload"))
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"user": user.Info()})
}

// ForgotPassword starts the reset flow with an anti-enumeration response.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, forgotPasswordMessage)
}

// VerifyResetCode exchanges the emailed code for an opaque reset token.
func (h *AuthHandler) VerifyResetCode(c *gin.Context) {
	var req models.VerifyResetCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	token, err := h.service.VerifyResetCode(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"resetToken": token})
}

// ResetPassword consumes the opaque reset token and sets a new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "password has been reset")
}

// ChangePassword updates the authenticated user's password.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	claims, ok := currentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), claims.UserID, req); err != nil {
		response.Error(c, err)
		return
	}

	response.Message(c, http.StatusOK, "password has been changed")
}

// presentedRefreshToken reads the refresh token from the JSON body, falling
// back to the scoped cookie.
func (h *AuthHandler) presentedRefreshToken(c *gin.Context) string {
	var payload struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := c.ShouldBindJSON(&payload); err == nil && payload.RefreshToken != "" {
		return payload.RefreshToken
	}
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil {
		return cookie
	}
	return ""
}

func currentUser(c *gin.Context) (*models.UserClaims, bool) {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.UserClaims)
	return claims, ok
}

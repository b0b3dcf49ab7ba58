package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a new user account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

// GoogleSignInRequest carries the client-supplied Google profile.
type GoogleSignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	PhotoURL string `json:"photoUrl" validate:"omitempty,url"`
}

// RefreshRequest exchanges a refresh token for a new token pair. Handlers
// fall back to the refresh_token cookie when the body omits the field.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// LogoutRequest optionally names the refresh token to revoke.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// ForgotPasswordRequest initiates the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyResetCodeRequest exchanges the emailed code for an opaque reset token.
type VerifyResetCodeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// ResetPasswordRequest consumes the opaque reset token.
type ResetPasswordRequest struct {
	ResetToken  string `json:"resetToken" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

// ChangePasswordRequest updates the password of the authenticated user.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

// UpdateProfileRequest is the wire shape of a partial profile update.
type UpdateProfileRequest struct {
	Name      *string `json:"name" validate:"omitempty,min=1"`
	AvatarURL *string `json:"avatarUrl" validate:"omitempty,url"`
	BannerURL *string `json:"bannerUrl" validate:"omitempty,url"`
}

// AdminLoginRequest authenticates an admin account.
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenPair bundles the issued access and refresh tokens.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
	BannerURL *string `json:"bannerUrl,omitempty"`
}

// AdminInfo describes the authenticated admin in responses.
type AdminInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UserClaims is the JWT payload for user access and refresh tokens. The two
// kinds share a shape; only the signing secret tells them apart.
type UserClaims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AdminClaims is the JWT payload for admin access tokens.
type AdminClaims struct {
	AdminID string `json:"adminId"`
	Email   string `json:"email"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drivehub/drivehub-auth-api/internal/mailer"
	"github.com/drivehub/drivehub-auth-api/internal/models"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error
	UpdateLastLogin(ctx context.Context, id string, ts time.Time) error
	UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error
	BackfillAvatar(ctx context.Context, id, avatarURL string) error
}

type tokenLedger interface {
	Store(ctx context.Context, token *models.RefreshToken) error
	Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	Revoke(ctx context.Context, tokenHash string) error
	RevokeIfActive(ctx context.Context, tokenHash string) (bool, error)
	RevokeFamily(ctx context.Context, familyID string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

type resetStore interface {
	DeleteUnusedForUser(ctx context.Context, userID string) error
	Create(ctx context.Context, token *models.PasswordResetToken) error
	FindActiveByCode(ctx context.Context, userID, code string, now time.Time) (*models.PasswordResetToken, error)
	AttachResetToken(ctx context.Context, id, resetToken string, expiresAt time.Time) error
	FindActiveByResetToken(ctx context.Context, resetToken string, now time.Time) (*models.PasswordResetToken, error)
	MarkUsed(ctx context.Context, id string, usedAt time.Time) error
}

// AuthConfig defines tunables for the authentication flows.
type AuthConfig struct {
	RefreshTokenTTL time.Duration
	ResetCodeTTL    time.Duration
	ResetTokenTTL   time.Duration
}

// AuthResult bundles what a successful credential flow hands back.
type AuthResult struct {
	User   models.UserInfo
	Tokens models.TokenPair
}

// AuthService implements the authentication flows on top of the token codec
// and the refresh-token ledger.
type AuthService struct {
	users     authUserRepository
	ledger    tokenLedger
	resets    resetStore
	codec     *TokenCodec
	mail      mailer.Mailer
	limiter   ResetLimiter
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, ledger tokenLedger, resets resetStore, codec *TokenCodec, mail mailer.Mailer, limiter ResetLimiter, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		users:     users,
		ledger:    ledger,
		resets:    resets,
		codec:     codec,
		mail:      mail,
		limiter:   limiter,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Login authenticates a user by email and password. Absent account and wrong
// password fail identically.
func (s *AuthService) Login(ctx context.Context, req models.LoginRequest) (*AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.metrics.RecordLogin("password")

	return &AuthResult{User: user.Info(), Tokens: tokens}, nil
}

// Register creates a user account and logs it in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	if _, err := s.users.FindByEmail(ctx, req.Email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email is already registered")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	user := &models.User{Email: req.Email, Name: req.Name, PasswordHash: string(hash)}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}
	s.metrics.RecordLogin("register")

	return &AuthResult{User: user.Info(), Tokens: tokens}, nil
}

// GoogleSignIn logs in or creates an account from the client-supplied Google
// profile.
//
// TODO: verify the ID token against Google before trusting the embedded
// email instead of accepting the profile from the client as-is.
func (s *AuthService) GoogleSignIn(ctx context.Context, req models.GoogleSignInRequest) (*AuthResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid google sign-in payload")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if req.PhotoURL != "" {
			if err := s.users.BackfillAvatar(ctx, user.ID, req.PhotoURL); err != nil {
				s.logger.Warn("failed to backfill avatar", zap.Error(err))
			}
		}
	case errors.Is(err, sql.ErrNoRows):
		// Federated accounts get a random hash no password can ever match,
		// so password login stays closed for them.
		placeholder, err := unusablePasswordHash()
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
		}
		user = &models.User{Email: req.Email, Name: req.Name, PasswordHash: placeholder}
		if req.PhotoURL != "" {
			photo := req.PhotoURL
			user.AvatarURL = &photo
		}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	tokens, err := s.startSession(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID, time.Now().UTC()); err != nil {
		s.logger.Warn("failed to update last login", zap.Error(err))
	}
	s.metrics.RecordLogin("google")

	return &AuthResult{User: user.Info(), Tokens: tokens}, nil
}

// Refresh rotates a refresh token: the presented token is invalidated and
// exactly one successor is minted in the same family. Presenting an
// already-revoked token is treated as theft and burns the whole family.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	claims, err := s.codec.VerifyUserRefresh(refreshToken)
	if err != nil {
		return models.TokenPair{}, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired refresh token")
	}

	hash := HashToken(refreshToken)
	row, err := s.ledger.Lookup(ctx, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TokenPair{}, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not recognized")
		}
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up refresh token")
	}

	if row.Revoked {
		return models.TokenPair{}, s.burnFamily(ctx, row)
	}

	if time.Now().UTC().After(row.ExpiresAt) {
		if err := s.ledger.Revoke(ctx, hash); err != nil {
			s.logger.Warn("failed to revoke expired refresh token", zap.Error(err))
		}
		return models.TokenPair{}, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token expired")
	}

	// Atomic check-and-set: of two concurrent redemptions only one flips the
	// flag. The loser took too long to get here and is handled like a reuse.
	won, err := s.ledger.RevokeIfActive(ctx, hash)
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rotate refresh token")
	}
	if !won {
		return models.TokenPair{}, s.burnFamily(ctx, row)
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.TokenPair{}, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists")
		}
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	tokens, err := s.issueTokens(ctx, user, row.FamilyID)
	if err != nil {
		return models.TokenPair{}, err
	}
	s.metrics.RecordRotation()

	return tokens, nil
}

// Logout revokes the presented refresh token. It always succeeds so the
// endpoint cannot be used as an oracle for token validity.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}
	if err := s.ledger.Revoke(ctx, HashToken(refreshToken)); err != nil {
		s.logger.Warn("failed to revoke refresh token on logout", zap.Error(err))
	}
}

// LogoutAll revokes every live refresh token the user holds.
func (s *AuthService) LogoutAll(ctx context.Context, userID string) error {
	if err := s.ledger.RevokeAllForUser(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke sessions")
	}
	return nil
}

// ForgotPassword starts the reset flow. The caller-visible outcome is the
// same whether or not the email is registered.
func (s *AuthService) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	allowed, err := s.limiter.Allow(ctx, req.Email)
	if err != nil {
		s.logger.Warn("reset limiter unavailable", zap.Error(err))
	} else if !allowed {
		return appErrors.Clone(appErrors.ErrRateLimited, "too many reset requests, try again later")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	if err := s.resets.DeleteUnusedForUser(ctx, user.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear reset records")
	}

	code, err := generateResetCode()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset code")
	}

	record := &models.PasswordResetToken{
		UserID:        user.ID,
		Code:          code,
		CodeExpiresAt: time.Now().UTC().Add(s.config.ResetCodeTTL),
	}
	if err := s.resets.Create(ctx, record); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset code")
	}

	if err := s.mail.SendPasswordResetEmail(ctx, user.Email, user.Name, code); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send reset email")
	}

	return nil
}

// VerifyResetCode exchanges the emailed 6-digit code for an opaque reset
// token. Wrong email and wrong code fail with the same message.
func (s *AuthService) VerifyResetCode(ctx context.Context, req models.VerifyResetCodeRequest) (string, error) {
	if err := s.validator.Struct(req); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	invalid := appErrors.Clone(appErrors.ErrValidation, "invalid or expired reset code")

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", invalid
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch user")
	}

	record, err := s.resets.FindActiveByCode(ctx, user.ID, req.Code, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", invalid
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset code")
	}

	token, err := generateOpaqueToken()
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate reset token")
	}

	if err := s.resets.AttachResetToken(ctx, record.ID, token, time.Now().UTC().Add(s.config.ResetTokenTTL)); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store reset token")
	}

	return token, nil
}

// ResetPassword consumes an opaque reset token and sets a new password. All
// of the user's refresh tokens are revoked alongside.
func (s *AuthService) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	record, err := s.resets.FindActiveByResetToken(ctx, req.ResetToken, time.Now().UTC())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "invalid or expired reset token")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	if err := s.users.UpdatePassword(ctx, record.UserID, string(hash), now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}
	if err := s.resets.MarkUsed(ctx, record.ID, now); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to consume reset token")
	}
	if err := s.ledger.RevokeAllForUser(ctx, record.UserID); err != nil {
		s.logger.Warn("failed to revoke sessions after password reset", zap.Error(err))
	}

	return nil
}

// ChangePassword updates the password of an authenticated user after
// re-checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrUnauthorized
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return appErrors.Clone(appErrors.ErrInvalidCredentials, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	if err := s.users.UpdatePassword(ctx, userID, string(hash), time.Now().UTC()); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update password")
	}

	if err := s.ledger.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke sessions after password change", zap.Error(err))
	}

	return nil
}

// Me returns the stored profile of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrUnauthorized
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies a partial profile update and returns the fresh record.
func (s *AuthService) UpdateProfile(ctx context.Context, userID string, req models.UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	update := models.ProfileUpdate{Name: req.Name, AvatarURL: req.AvatarURL, BannerURL: req.BannerURL}
	if !update.IsEmpty() {
		if err := s.users.UpdateProfile(ctx, userID, update); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
		}
	}

	return s.Me(ctx, userID)
}

// startSession begins a new token family for a fresh login.
func (s *AuthService) startSession(ctx context.Context, user *models.User) (models.TokenPair, error) {
	return s.issueTokens(ctx, user, uuid.NewString())
}

// issueTokens mints an access+refresh pair and records the refresh token in
// the ledger under the given family.
func (s *AuthService) issueTokens(ctx context.Context, user *models.User, familyID string) (models.TokenPair, error) {
	access, err := s.codec.IssueUserAccess(user)
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue access token")
	}
	refresh, err := s.codec.IssueUserRefresh(user)
	if err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue refresh token")
	}

	row := &models.RefreshToken{
		UserID:    user.ID,
		FamilyID:  familyID,
		TokenHash: HashToken(refresh),
		ExpiresAt: time.Now().UTC().Add(s.config.RefreshTokenTTL),
	}
	if err := s.ledger.Store(ctx, row); err != nil {
		return models.TokenPair{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist refresh token")
	}

	return models.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// burnFamily handles a reuse signal: the strongest indication we get that a
// refresh token was stolen.
func (s *AuthService) burnFamily(ctx context.Context, row *models.RefreshToken) error {
	if err := s.ledger.RevokeFamily(ctx, row.FamilyID); err != nil {
		s.logger.Error("failed to revoke token family", zap.Error(err), zap.String("family_id", row.FamilyID))
	}
	s.logger.Warn("refresh token reuse detected",
		zap.String("user_id", row.UserID),
		zap.String("family_id", row.FamilyID),
	)
	s.metrics.RecordReuseDetected()
	return appErrors.ErrTokenReuse
}

func unusablePasswordHash() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword(buf, bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func generateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func generateOpaqueToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

package service

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/pkg/config"
)

// Codec-level verification failures. The ledger is never consulted here;
// these only reflect signature and expiry checks.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
)

// TokenCodec signs and verifies the three token kinds. Each kind has its own
// secret, so a token issued for one purpose is structurally unusable for
// another even though algorithm and encoding are shared.
type TokenCodec struct {
	cfg config.JWTConfig
}

// NewTokenCodec constructs a TokenCodec.
func NewTokenCodec(cfg config.JWTConfig) *TokenCodec {
	return &TokenCodec{cfg: cfg}
}

// IssueUserAccess signs a short-lived user access token.
func (c *TokenCodec) IssueUserAccess(user *models.User) (string, error) {
	return c.signUser(user, c.cfg.AccessSecret, c.cfg.AccessExpiration)
}

// IssueUserRefresh signs a long-lived refresh token with the refresh secret.
func (c *TokenCodec) IssueUserRefresh(user *models.User) (string, error) {
	return c.signUser(user, c.cfg.RefreshSecret, c.cfg.RefreshExpiration)
}

// IssueAdminAccess signs an admin access token carrying the role claim.
func (c *TokenCodec) IssueAdminAccess(admin *models.Admin) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.AdminClaims{
		AdminID: admin.ID,
		Email:   admin.Email,
		Role:    admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    c.cfg.Issuer,
			Subject:   admin.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.cfg.AdminExpiration)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.AdminSecret))
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

// VerifyUserAccess checks a user access token against the access secret.
func (c *TokenCodec) VerifyUserAccess(token string) (*models.UserClaims, error) {
	return c.verifyUser(token, c.cfg.AccessSecret)
}

// VerifyUserRefresh checks a refresh token against the refresh secret.
// Whether the token may still be redeemed is the ledger's call, not ours.
func (c *TokenCodec) VerifyUserRefresh(token string) (*models.UserClaims, error) {
	return c.verifyUser(token, c.cfg.RefreshSecret)
}

// VerifyAdminAccess checks an admin access token against the admin secret.
func (c *TokenCodec) VerifyAdminAccess(token string) (*models.AdminClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &models.AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(c.cfg.AdminSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*models.AdminClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (c *TokenCodec) signUser(user *models.User, secret string, ttl time.Duration) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.UserClaims{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			// jti keeps tokens minted in the same second distinct, so two
			// ledger rows never collide on the same hash.
			ID:        uuid.NewString(),
			Issuer:    c.cfg.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign user token: %w", err)
	}
	return signed, nil
}

func (c *TokenCodec) verifyUser(token, secret string) (*models.UserClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &models.UserClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*models.UserClaims)
	if !ok || !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// HashToken derives the deterministic one-way ledger key for a bearer value.
// The ledger never sees the raw token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

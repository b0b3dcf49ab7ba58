package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drivehub/drivehub-auth-api/internal/middleware"
	"github.com/drivehub/drivehub-auth-api/internal/models"
	"github.com/drivehub/drivehub-auth-api/internal/service"
	"github.com/drivehub/drivehub-auth-api/pkg/config"
)

type stubUsers struct {
	users map[string]*models.User
}

func (m *stubUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == strings.ToLower(email) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *stubUsers) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	user.Email = strings.ToLower(user.Email)
	m.users[user.ID] = user
	return nil
}

func (m *stubUsers) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	if u, ok := m.users[id]; ok {
		u.PasswordHash = passwordHash
	}
	return nil
}

func (m *stubUsers) UpdateLastLogin(_ context.Context, _ string, _ time.Time) error { return nil }

func (m *stubUsers) UpdateProfile(_ context.Context, id string, update models.ProfileUpdate) error {
	if u, ok := m.users[id]; ok && update.Name != nil {
		u.Name = *update.Name
	}
	return nil
}

func (m *stubUsers) BackfillAvatar(_ context.Context, _, _ string) error { return nil }

type stubLedger struct {
	rows map[string]*models.RefreshToken
}

func (m *stubLedger) Store(_ context.Context, token *models.RefreshToken) error {
	token.ID = token.TokenHash[:8]
	m.rows[token.TokenHash] = token
	return nil
}

func (m *stubLedger) Lookup(_ context.Context, tokenHash string) (*models.RefreshToken, error) {
	row, ok := m.rows[tokenHash]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return row, nil
}

func (m *stubLedger) Revoke(_ context.Context, tokenHash string) error {
	if row, ok := m.rows[tokenHash]; ok {
		row.Revoked = true
	}
	return nil
}

func (m *stubLedger) RevokeIfActive(_ context.Context, tokenHash string) (bool, error) {
	row, ok := m.rows[tokenHash]
	if !ok || row.Revoked {
		return false, nil
	}
	row.Revoked = true
	return true, nil
}

func (m *stubLedger) RevokeFamily(_ context.Context, familyID string) error {
	for _, row := range m.rows {
		if row.FamilyID == familyID {
			row.Revoked = true
		}
	}
	return nil
}

func (m *stubLedger) RevokeAllForUser(_ context.Context, userID string) error {
	for _, row := range m.rows {
		if row.UserID == userID {
			row.Revoked = true
		}
	}
	return nil
}

type stubResets struct {
	records map[string]*models.PasswordResetToken
}

func (m *stubResets) DeleteUnusedForUser(_ context.Context, userID string) error {
	for id, rec := range m.records {
		if rec.UserID == userID && !rec.Used {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *stubResets) Create(_ context.Context, token *models.PasswordResetToken) error {
	token.ID = "reset-" + token.Code
	m.records[token.ID] = token
	return nil
}

func (m *stubResets) FindActiveByCode(_ context.Context, userID, code string, now time.Time) (*models.PasswordResetToken, error) {
	for _, rec := range m.records {
		if rec.UserID == userID && rec.Code == code && !rec.Used && rec.CodeExpiresAt.After(now) {
			return rec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubResets) AttachResetToken(_ context.Context, id, resetToken string, expiresAt time.Time) error {
	rec, ok := m.records[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.ResetToken = &resetToken
	rec.TokenExpiresAt = &expiresAt
	return nil
}

func (m *stubResets) FindActiveByResetToken(_ context.Context, resetToken string, now time.Time) (*models.PasswordResetToken, error) {
	for _, rec := range m.records {
		if rec.ResetToken != nil && *rec.ResetToken == resetToken && !rec.Used && rec.TokenExpiresAt != nil && rec.TokenExpiresAt.After(now) {
			return rec, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *stubResets) MarkUsed(_ context.Context, id string, usedAt time.Time) error {
	if rec, ok := m.records[id]; ok {
		rec.Used = true
		rec.UsedAt = &usedAt
	}
	return nil
}

type stubMailer struct{}

func (stubMailer) SendPasswordResetEmail(_ context.Context, _, _, _ string) error { return nil }

type stubAdmins struct {
	admin *models.Admin
}

func (m *stubAdmins) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	if m.admin != nil && m.admin.Email == strings.ToLower(email) {
		return m.admin, nil
	}
	return nil, sql.ErrNoRows
}

func testConfig() *config.Config {
	return &config.Config{
		Env:       config.EnvDevelopment,
		APIPrefix: "/api/v1",
		JWT: config.JWTConfig{
			AccessSecret:      "access-secret",
			RefreshSecret:     "refresh-secret",
			AdminSecret:       "admin-secret",
			AccessExpiration:  time.Hour,
			RefreshExpiration: 24 * time.Hour,
			AdminExpiration:   time.Hour,
			Issuer:            "test",
		},
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *stubUsers, *service.TokenCodec) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	codec := service.NewTokenCodec(cfg.JWT)

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	users := &stubUsers{users: map[string]*models.User{
		"u1": {ID: "u1", Email: "user@example.com", Name: "Test User", PasswordHash: string(hash)},
	}}

	authSvc := service.NewAuthService(
		users,
		&stubLedger{rows: make(map[string]*models.RefreshToken)},
		&stubResets{records: make(map[string]*models.PasswordResetToken)},
		codec,
		stubMailer{},
		service.NewMemoryResetLimiter(100, time.Hour),
		nil,
		validator.New(),
		zap.NewNop(),
		service.AuthConfig{RefreshTokenTTL: 24 * time.Hour, ResetCodeTTL: 10 * time.Minute, ResetTokenTTL: 15 * time.Minute},
	)

	adminHash, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
	require.NoError(t, err)
	adminSvc := service.NewAdminService(
		&stubAdmins{admin: &models.Admin{ID: "a1", Email: "admin@example.com", PasswordHash: string(adminHash), Role: models.RoleAdmin}},
		codec, nil, validator.New(), zap.NewNop(),
	)

	cookies := NewCookieWriter(cfg)
	r := gin.New()
	RegisterRoutes(r, cfg.APIPrefix, NewAuthHandler(authSvc, cookies), NewAdminHandler(adminSvc, cookies), codec, "ops-secret")
	return r, users, codec
}

func postJSON(t *testing.T, r *gin.Engine, path string, payload any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, fn := range mutate {
		fn(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func cookieByName(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestLoginEndpointSetsCookiesAndBody(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{"email": "user@example.com", "password": "password"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success      bool            `json:"success"`
		AccessToken  string          `json:"accessToken"`
		RefreshToken string          `json:"refreshToken"`
		User         models.UserInfo `json:"user"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEmpty(t, body.RefreshToken)
	assert.Equal(t, "u1", body.User.ID)

	access := cookieByName(t, w, middleware.AccessTokenCookie)
	require.NotNil(t, access)
	assert.Equal(t, body.AccessToken, access.Value)
	assert.Equal(t, "/", access.Path)
	assert.True(t, access.HttpOnly)

	refresh := cookieByName(t, w, middleware.RefreshTokenCookie)
	require.NotNil(t, refresh)
	assert.Equal(t, "/api/v1/auth", refresh.Path)
	assert.True(t, refresh.HttpOnly)
}

func TestLoginEndpointInvalidCredentials(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := postJSON(t, r, "/api/v1/auth/login", gin.H{"email": "user@example.com", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_CREDENTIALS")
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestRegisterEndpointCreated(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := postJSON(t, r, "/api/v1/auth/register", gin.H{"email": "new@example.com", "name": "New", "password": "secret1"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotNil(t, cookieByName(t, w, middleware.AccessTokenCookie))
}

func TestForgotPasswordIndistinguishableResponses(t *testing.T) {
	r, _, _ := newTestServer(t)

	registered := postJSON(t, r, "/api/v1/auth/forgot-password", gin.H{"email": "user@example.com"})
	unregistered := postJSON(t, r, "/api/v1/auth/forgot-password", gin.H{"email": "ghost@example.com"})

	require.Equal(t, http.StatusOK, registered.Code)
	assert.Equal(t, registered.Code, unregistered.Code)
	assert.Equal(t, registered.Body.String(), unregistered.Body.String())
}

func TestRefreshEndpointFromCookie(t *testing.T) {
	r, _, _ := newTestServer(t)

	login := postJSON(t, r, "/api/v1/auth/login", gin.H{"email": "user@example.com", "password": "password"})
	require.Equal(t, http.StatusOK, login.Code)
	refresh := cookieByName(t, login, middleware.RefreshTokenCookie)
	require.NotNil(t, refresh)

	w := postJSON(t, r, "/api/v1/auth/refresh", nil, func(req *http.Request) {
		req.AddCookie(&http.Cookie{Name: middleware.RefreshTokenCookie, Value: refresh.Value})
	})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.AccessToken)
	assert.NotEqual(t, refresh.Value, body.RefreshToken)
}

func TestRefreshEndpointReuseClearsCookies(t *testing.T) {
	r, _, _ := newTestServer(t)

	login := postJSON(t, r, "/api/v1/auth/login", gin.H{"email": "user@example.com", "password": "password"})
	require.Equal(t, http.StatusOK, login.Code)
	token := cookieByName(t, login, middleware.RefreshTokenCookie).Value

	first := postJSON(t, r, "/api/v1/auth/refresh", gin.H{"refreshToken": token})
	require.Equal(t, http.StatusOK, first.Code)

	second := postJSON(t, r, "/api/v1/auth/refresh", gin.H{"refreshToken": token})
	require.Equal(t, http.StatusUnauthorized, second.Code)
	assert.Contains(t, second.Body.String(), "TOKEN_REUSE")

	cleared := cookieByName(t, second, middleware.RefreshTokenCookie)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Less(t, cleared.MaxAge, 0)
}

func TestRefreshEndpointMissingToken(t *testing.T) {
	r, _, _ := newTestServer(t)

	w := postJSON(t, r, "/api/v1/auth/refresh", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutEndpointAlwaysSucceeds(t *testing.T) {
	r, _, _ := newTestServer(t)

	// No token at all still yields a clean 200.
	w := postJSON(t, r, "/api/v1/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"success":true`)
}

func TestMeEndpointRequiresAuth(t *testing.T) {
	r, _, codec := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	token, err := codec.IssueUserAccess(&models.User{ID: "u1", Email: "user@example.com"})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@example.com")
}

func TestChangePasswordEndpoint(t *testing.T) {
	r, users, codec := newTestServer(t)

	token, err := codec.IssueUserAccess(&models.User{ID: "u1", Email: "user@example.com"})
	require.NoError(t, err)

	before := users.users["u1"].PasswordHash
	w := postJSON(t, r, "/api/v1/auth/change-password",
		gin.H{"currentPassword": "password", "newPassword": "newpassword"},
		func(req *http.Request) { req.Header.Set("Authorization", "Bearer "+token) },
	)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, before, users.users["u1"].PasswordHash)
}

func TestAdminLoginEndpoint(t *testing.T) {
	r, _, codec := newTestServer(t)

	w := postJSON(t, r, "/api/v1/admin/login", gin.H{"email": "admin@example.com", "password": "adminpass"})
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Token string           `json:"token"`
		Admin models.AdminInfo `json:"admin"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "a1", body.Admin.ID)

	claims, err := codec.VerifyAdminAccess(body.Token)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	assert.NotNil(t, cookieByName(t, w, middleware.AdminTokenCookie))
}

func TestAdminMeEndpointWithOpsKey(t *testing.T) {
	r, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/me", nil)
	req.Header.Set(middleware.OpsKeyHeader, "ops-secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ops")
}

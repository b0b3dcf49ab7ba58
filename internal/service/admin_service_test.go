package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drivehub/drivehub-auth-api/internal/models"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
)

type mockAdmins struct {
	admin *models.Admin
}

func (m *mockAdmins) FindByEmail(_ context.Context, email string) (*models.Admin, error) {
	if m.admin != nil && m.admin.Email == strings.ToLower(email) {
		return m.admin, nil
	}
	return nil, sql.ErrNoRows
}

func TestAdminLoginSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockAdmins{admin: &models.Admin{ID: "a1", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin}}
	codec := NewTokenCodec(testJWTConfig())
	svc := NewAdminService(repo, codec, nil, validator.New(), zap.NewNop())

	res, err := svc.Login(context.Background(), models.AdminLoginRequest{Email: "admin@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "a1", res.Admin.ID)

	claims, err := codec.VerifyAdminAccess(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "a1", claims.AdminID)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	// The admin token never passes as a user token.
	_, err = codec.VerifyUserAccess(res.Token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestAdminLoginFailuresAreIndistinguishable(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	require.NoError(t, err)
	repo := &mockAdmins{admin: &models.Admin{ID: "a1", Email: "admin@example.com", PasswordHash: string(hash), Role: models.RoleAdmin}}
	svc := NewAdminService(repo, NewTokenCodec(testJWTConfig()), nil, validator.New(), zap.NewNop())

	_, wrongPassword := svc.Login(context.Background(), models.AdminLoginRequest{Email: "admin@example.com", Password: "nope"})
	_, unknownEmail := svc.Login(context.Background(), models.AdminLoginRequest{Email: "ghost@example.com", Password: "password"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	a := appErrors.FromError(wrongPassword)
	b := appErrors.FromError(unknownEmail)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, a.Code)
	assert.Equal(t, a.Message, b.Message)
}

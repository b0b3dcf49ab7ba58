package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drivehub/drivehub-auth-api/internal/models"
)

func TestResetCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	mock.ExpectExec("INSERT INTO password_reset_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	record := &models.PasswordResetToken{UserID: "u1", Code: "123456", CodeExpiresAt: time.Now().Add(10 * time.Minute)}
	err := repo.Create(context.Background(), record)
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFindActiveByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "user_id", "code", "code_expires_at", "reset_token", "token_expires_at", "used", "used_at", "created_at"}).
		AddRow("pr1", "u1", "123456", now.Add(time.Minute), nil, nil, false, nil, now)
	mock.ExpectQuery("SELECT .+ FROM password_reset_tokens WHERE user_id").
		WithArgs("u1", "123456", now).
		WillReturnRows(rows)

	rec, err := repo.FindActiveByCode(context.Background(), "u1", "123456", now)
	require.NoError(t, err)
	assert.Equal(t, "pr1", rec.ID)
	assert.False(t, rec.Used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetFindActiveByCodeExpiredOrUsed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	now := time.Now().UTC()
	mock.ExpectQuery("SELECT .+ FROM password_reset_tokens WHERE user_id").
		WithArgs("u1", "123456", now).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByCode(context.Background(), "u1", "123456", now)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestResetAttachResetToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	expires := time.Now().UTC().Add(15 * time.Minute)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET reset_token = $2, token_expires_at = $3 WHERE id = $1")).
		WithArgs("pr1", "opaque", expires).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AttachResetToken(context.Background(), "pr1", "opaque", expires)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetMarkUsed(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	usedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE id = $1")).
		WithArgs("pr1", usedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkUsed(context.Background(), "pr1", usedAt)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResetDeleteUnusedForUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewResetRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM password_reset_tokens WHERE user_id = $1 AND used = FALSE")).
		WithArgs("u1").
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.DeleteUnusedForUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

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

func TestAdminFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "role", "created_at"}).
		AddRow("a1", "admin@example.com", "hash", models.RoleAdmin, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, email, password_hash, role, created_at FROM admins WHERE email = $1 LIMIT 1")).
		WithArgs("admin@example.com").
		WillReturnRows(rows)

	admin, err := repo.FindByEmail(context.Background(), "Admin@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "a1", admin.ID)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdminFindByEmailNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAdminRepository(db)

	mock.ExpectQuery("SELECT .+ FROM admins").
		WithArgs("ghost@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByEmail(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

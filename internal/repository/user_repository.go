package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drivehub/drivehub-auth-api/internal/models"
)

// UserRepository provides database access for user accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address. Lookup is case-insensitive;
// addresses are stored lowercased.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, name, avatar_url, banner_url, last_login, created_at, updated_at FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, password_hash, name, avatar_url, banner_url, last_login, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user and fills generated fields on the passed record.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(user.Email)

	const query = `INSERT INTO users (id, email, password_hash, name, avatar_url, banner_url, created_at, updated_at) VALUES (:id, :email, :password_hash, :name, :avatar_url, :banner_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// UpdatePassword updates the stored password hash.
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	const query = `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash, updatedAt); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UpdateProfile applies a partial update of the fixed profile field set. Each
// optional field maps to one COALESCE assignment, so the statement text is
// constant regardless of which fields are present.
func (r *UserRepository) UpdateProfile(ctx context.Context, id string, update models.ProfileUpdate) error {
	const query = `UPDATE users SET
		name = COALESCE($2, name),
		avatar_url = COALESCE($3, avatar_url),
		banner_url = COALESCE($4, banner_url),
		updated_at = $5
		WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, update.Name, update.AvatarURL, update.BannerURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	return nil
}

// BackfillAvatar sets the avatar only when the account has none yet. Used by
// federated sign-in to pick up the provider photo without clobbering a
// user-chosen one.
func (r *UserRepository) BackfillAvatar(ctx context.Context, id, avatarURL string) error {
	const query = `UPDATE users SET avatar_url = $2, updated_at = $3 WHERE id = $1 AND (avatar_url IS NULL OR avatar_url = '')`
	if _, err := r.db.ExecContext(ctx, query, id, avatarURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("backfill avatar: %w", err)
	}
	return nil
}

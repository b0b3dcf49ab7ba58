package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/drivehub/drivehub-auth-api/internal/models"
)

// ResetRepository persists password reset records.
type ResetRepository struct {
	db *sqlx.DB
}

// NewResetRepository creates a new instance of ResetRepository.
func NewResetRepository(db *sqlx.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

// DeleteUnusedForUser removes pending reset records so only the most recent
// code is ever redeemable.
func (r *ResetRepository) DeleteUnusedForUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM password_reset_tokens WHERE user_id = $1 AND used = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("delete unused reset tokens: %w", err)
	}
	return nil
}

// Create inserts a new reset record.
func (r *ResetRepository) Create(ctx context.Context, token *models.PasswordResetToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO password_reset_tokens (id, user_id, code, code_expires_at, reset_token, token_expires_at, used, used_at, created_at) VALUES (:id, :user_id, :code, :code_expires_at, :reset_token, :token_expires_at, :used, :used_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("create reset token: %w", err)
	}
	return nil
}

// FindActiveByCode returns the unused, unexpired record matching user+code.
func (r *ResetRepository) FindActiveByCode(ctx context.Context, userID, code string, now time.Time) (*models.PasswordResetToken, error) {
	const query = `SELECT id, user_id, code, code_expires_at, reset_token, token_expires_at, used, used_at, created_at FROM password_reset_tokens WHERE user_id = $1 AND code = $2 AND used = FALSE AND code_expires_at > $3 LIMIT 1`
	var rt models.PasswordResetToken
	if err := r.db.GetContext(ctx, &rt, query, userID, code, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset token by code: %w", err)
	}
	return &rt, nil
}

// AttachResetToken stores the opaque token minted after code verification and
// starts its own expiry clock.
func (r *ResetRepository) AttachResetToken(ctx context.Context, id, resetToken string, expiresAt time.Time) error {
	const query = `UPDATE password_reset_tokens SET reset_token = $2, token_expires_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, resetToken, expiresAt); err != nil {
		return fmt.Errorf("attach reset token: %w", err)
	}
	return nil
}

// FindActiveByResetToken returns the unused record matching an unexpired
// opaque reset token.
func (r *ResetRepository) FindActiveByResetToken(ctx context.Context, resetToken string, now time.Time) (*models.PasswordResetToken, error) {
	const query = `SELECT id, user_id, code, code_expires_at, reset_token, token_expires_at, used, used_at, created_at FROM password_reset_tokens WHERE reset_token = $1 AND used = FALSE AND token_expires_at > $2 LIMIT 1`
	var rt models.PasswordResetToken
	if err := r.db.GetContext(ctx, &rt, query, resetToken, now); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find reset token: %w", err)
	}
	return &rt, nil
}

// MarkUsed consumes the record so neither the code nor the token can be
// redeemed again.
func (r *ResetRepository) MarkUsed(ctx context.Context, id string, usedAt time.Time) error {
	const query = `UPDATE password_reset_tokens SET used = TRUE, used_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, usedAt); err != nil {
		return fmt.Errorf("mark reset token used: %w", err)
	}
	return nil
}

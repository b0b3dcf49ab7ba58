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

// TokenRepository is the refresh-token ledger. Rows are keyed by the SHA-256
// hash of the bearer value and are the sole source of truth for whether a
// structurally valid refresh token may still be redeemed.
type TokenRepository struct {
	db *sqlx.DB
}

// NewTokenRepository creates a new instance of TokenRepository.
func NewTokenRepository(db *sqlx.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Store inserts a ledger row for a freshly issued refresh token.
func (r *TokenRepository) Store(ctx context.Context, token *models.RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO refresh_tokens (id, user_id, family_id, token_hash, revoked, revoked_at, expires_at, created_at) VALUES (:id, :user_id, :family_id, :token_hash, :revoked, :revoked_at, :expires_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

// Lookup returns the ledger row matching a token hash.
func (r *TokenRepository) Lookup(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	const query = `SELECT id, user_id, family_id, token_hash, revoked, revoked_at, expires_at, created_at FROM refresh_tokens WHERE token_hash = $1 LIMIT 1`
	var rt models.RefreshToken
	if err := r.db.GetContext(ctx, &rt, query, tokenHash); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}
	return &rt, nil
}

// Revoke marks the row matching a token hash as revoked. No-op when the row
// is absent or already revoked.
func (r *TokenRepository) Revoke(ctx context.Context, tokenHash string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, tokenHash, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeIfActive atomically flips the revoked flag and reports whether this
// caller won. Two concurrent redemptions of the same token both reach this
// statement, but only one observes an affected row; the loser is routed into
// the reuse-detection path.
func (r *TokenRepository) RevokeIfActive(ctx context.Context, tokenHash string) (bool, error) {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE token_hash = $1 AND revoked = FALSE`
	res, err := r.db.ExecContext(ctx, query, tokenHash, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh token: %w", err)
	}
	return affected > 0, nil
}

// RevokeFamily revokes every row sharing a family id, regardless of
// individual expiry. Idempotent.
func (r *TokenRepository) RevokeFamily(ctx context.Context, familyID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE family_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, familyID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke token family: %w", err)
	}
	return nil
}

// RevokeAllForUser revokes every live token the user holds, across all
// families. Used by change-password and logout-all.
func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	const query = `UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("revoke user tokens: %w", err)
	}
	return nil
}

// DeleteExpired removes rows whose expiry passed before the cutoff. Ledger
// rows only matter while their token could still be presented, so anything
// past expiry is garbage.
func (r *TokenRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM refresh_tokens WHERE expires_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	return affected, nil
}

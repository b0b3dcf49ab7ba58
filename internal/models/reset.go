package models

import "time"

// PasswordResetToken tracks one reset attempt. The 6-digit code is exchanged
// exactly once for the opaque reset token, which in turn is consumed exactly
// once to set a new password.
type PasswordResetToken struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"userId"`
	Code           string     `db:"code" json:"-"`
	CodeExpiresAt  time.Time  `db:"code_expires_at" json:"codeExpiresAt"`
	ResetToken     *string    `db:"reset_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"tokenExpiresAt,omitempty"`
	Used           bool       `db:"used" json:"used"`
	UsedAt         *time.Time `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"createdAt"`
}

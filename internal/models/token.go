package models

import "time"

// RefreshToken is a ledger row for one issued refresh token. The raw bearer
// value is never stored; the row is keyed by its SHA-256 hash, so a ledger
// compromise alone yields no usable tokens. FamilyID groups every token
// descending from a single login session, which bounds the blast radius of a
// stolen token to that session's lineage.
type RefreshToken struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"userId"`
	FamilyID  string     `db:"family_id" json:"familyId"`
	TokenHash string     `db:"token_hash" json:"-"`
	Revoked   bool       `db:"revoked" json:"revoked"`
	RevokedAt *time.Time `db:"revoked_at" json:"revokedAt,omitempty"`
	ExpiresAt time.Time  `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
}

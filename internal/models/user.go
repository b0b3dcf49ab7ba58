package models

import "time"

// User represents an account stored in the users table. Accounts are never
// hard-deleted here; removal is an admin-panel operation outside this service.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Name         string     `db:"name" json:"name"`
	AvatarURL    *string    `db:"avatar_url" json:"avatarUrl,omitempty"`
	BannerURL    *string    `db:"banner_url" json:"bannerUrl,omitempty"`
	LastLogin    *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updatedAt"`
}

// Info returns the public view of the user embedded in auth responses.
func (u *User) Info() UserInfo {
	return UserInfo{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		AvatarURL: u.AvatarURL,
		BannerURL: u.BannerURL,
	}
}

// ProfileUpdate captures a partial update of the fixed profile field set. A
// nil field means "leave unchanged"; the repository compiles this to a single
// parameterized COALESCE statement, never to dynamically assembled SQL.
type ProfileUpdate struct {
	Name      *string
	AvatarURL *string
	BannerURL *string
}

// IsEmpty reports whether the update would change nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return p.Name == nil && p.AvatarURL == nil && p.BannerURL == nil
}

package models

import "time"

// RoleAdmin is the only role value the admin gate accepts. A token signed
// with the admin secret but carrying any other role is rejected with 403.
const RoleAdmin = "admin"

// Admin represents a row in the admins table. Admin accounts are provisioned
// outside this service; only login reads them.
type Admin struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
}

// Info returns the public view of the admin embedded in auth responses.
func (a *Admin) Info() AdminInfo {
	return AdminInfo{ID: a.ID, Email: a.Email, Role: a.Role}
}

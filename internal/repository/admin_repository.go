package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/drivehub/drivehub-auth-api/internal/models"
)

// AdminRepository reads admin accounts. Admin provisioning happens outside
// this service, so there is no write path here.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates a new instance of AdminRepository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByEmail returns an admin by email address.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	const query = `SELECT id, email, password_hash, role, created_at FROM admins WHERE email = $1 LIMIT 1`
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, strings.ToLower(email)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by email: %w", err)
	}
	return &admin, nil
}

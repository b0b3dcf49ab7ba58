package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/drivehub/drivehub-auth-api/internal/models"
	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
)

type adminRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
}

// AdminResult is what a successful admin login hands back. Admin sessions are
// a single token; there is no refresh lineage for the admin panel.
type AdminResult struct {
	Admin models.AdminInfo
	Token string
}

// AdminService authenticates admin-panel accounts.
type AdminService struct {
	admins    adminRepository
	codec     *TokenCodec
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdminService constructs an AdminService instance.
func NewAdminService(admins adminRepository, codec *TokenCodec, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AdminService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminService{admins: admins, codec: codec, metrics: metrics, validator: validate, logger: logger}
}

// Login authenticates an admin by email and password. Like user login, absent
// account and wrong password are indistinguishable to the caller.
func (s *AdminService) Login(ctx context.Context, req models.AdminLoginRequest) (*AdminResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	admin, err := s.admins.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch admin")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	token, err := s.codec.IssueAdminAccess(admin)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue admin token")
	}
	s.metrics.RecordLogin("admin")

	return &AdminResult{Admin: admin.Info(), Token: token}, nil
}

package mailer

import (
	"context"
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/drivehub/drivehub-auth-api/pkg/config"
)

// Mailer delivers password reset codes. Delivery failure is surfaced to the
// caller; the flows decide how to report it.
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, email, name, code string) error
}

// SMTPMailer sends reset mail through a plain SMTP relay.
type SMTPMailer struct {
	cfg config.SMTPConfig
}

// NewSMTPMailer constructs an SMTPMailer.
func NewSMTPMailer(cfg config.SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// SendPasswordResetEmail delivers the 6-digit reset code.
func (m *SMTPMailer) SendPasswordResetEmail(_ context.Context, email, name, code string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Your DriveHub password reset code\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nHi %s,\r\n\r\nYour password reset code is %s. It expires in 10 minutes.\r\n\r\nIf you did not request this, you can ignore this email.\r\n",
		m.cfg.From, email, name, code,
	)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("send reset email: %w", err)
	}
	return nil
}

// LogMailer is the development stand-in used when SMTP is unconfigured. It
// logs the code instead of sending it.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendPasswordResetEmail logs the reset code.
func (m *LogMailer) SendPasswordResetEmail(_ context.Context, email, _, code string) error {
	m.logger.Info("password reset code issued",
		zap.String("email", email),
		zap.String("code", code),
	)
	return nil
}

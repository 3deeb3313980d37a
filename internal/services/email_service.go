package services

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/roryk/backend/internal/config"
	"go.uber.org/zap"
)

var ErrEmailNotConfigured = errors.New("email is not configured")

// EmailSender delivers account notifications.
type EmailSender interface {
	SendPasswordReset(ctx context.Context, to, resetURL string, expiresAt time.Time) error
	SendPasswordChanged(ctx context.Context, to, username string) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService sends mail over SMTP. Without an SMTP host it logs the
// message and returns ErrEmailNotConfigured.
type EmailService struct {
	cfg      config.SMTPConfig
	logger   *zap.Logger
	sendMail sendMailFunc
}

func NewEmailService(cfg config.SMTPConfig, logger *zap.Logger) *EmailService {
	return &EmailService{cfg: cfg, logger: logger.Named("email"), sendMail: smtp.SendMail}
}

func (s *EmailService) SendPasswordReset(ctx context.Context, to, resetURL string, expiresAt time.Time) error {
	body := fmt.Sprintf("You requested a password reset.\r\n\r\n"+
		"Open the link below to choose a new password:\r\n%s\r\n\r\n"+
		"The link expires at %s. If you did not request a reset you can ignore this email.\r\n",
		resetURL, expiresAt.UTC().Format(time.RFC1123))
	return s.send(to, "Password reset request", body)
}

func (s *EmailService) SendPasswordChanged(ctx context.Context, to, username string) error {
	body := fmt.Sprintf("Hello %s,\r\n\r\n"+
		"The password for your account was changed at %s.\r\n"+
		"If you did not make this change, contact support immediately.\r\n",
		username, time.Now().UTC().Format(time.RFC1123))
	return s.send(to, "Your password was changed", body)
}

func (s *EmailService) send(to, subject, body string) error {
	if !s.cfg.Configured() {
		s.logger.Info("smtp not configured, email not sent", zap.String("to", to), zap.String("subject", subject))
		return ErrEmailNotConfigured
	}

	msg := strings.Join([]string{
		"From: " + s.cfg.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		s.logger.Error("failed to send email", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return err
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

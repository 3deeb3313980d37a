package services

import (
	"context"
	"errors"
	"net/smtp"
	"testing"
	"time"

	"github.com/roryk/backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type capturedMail struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	msg  string
}

func newCapturingEmailService(cfg config.SMTPConfig, err error) (*EmailService, *[]capturedMail) {
	var sent []capturedMail
	svc := NewEmailService(cfg, zap.NewNop())
	svc.sendMail = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, capturedMail{addr: addr, auth: a, from: from, to: to, msg: string(msg)})
		return err
	}
	return svc, &sent
}

func TestEmailService_SendPasswordReset(t *testing.T) {
	svc, sent := newCapturingEmailService(config.SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "mailer",
		Password: "secret",
		From:     "noreply@example.com",
	}, nil)

	expires := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	err := svc.SendPasswordReset(context.Background(), "alice@example.com", "https://app.example.com/reset-password?token=abc", expires)
	require.NoError(t, err)

	require.Len(t, *sent, 1)
	mail := (*sent)[0]
	assert.Equal(t, "smtp.example.com:587", mail.addr)
	assert.NotNil(t, mail.auth)
	assert.Equal(t, "noreply@example.com", mail.from)
	assert.Equal(t, []string{"alice@example.com"}, mail.to)
	assert.Contains(t, mail.msg, "Subject: Password reset request")
	assert.Contains(t, mail.msg, "https://app.example.com/reset-password?token=abc")
	assert.Contains(t, mail.msg, "Sun, 01 Jun 2025 13:00:00 UTC")
}

func TestEmailService_SendPasswordChangedWithoutAuth(t *testing.T) {
	svc, sent := newCapturingEmailService(config.SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.com"}, nil)

	require.NoError(t, svc.SendPasswordChanged(context.Background(), "alice@example.com", "alice"))
	require.Len(t, *sent, 1)
	assert.Nil(t, (*sent)[0].auth)
	assert.Contains(t, (*sent)[0].msg, "Hello alice")
}

func TestEmailService_NotConfigured(t *testing.T) {
	svc, sent := newCapturingEmailService(config.SMTPConfig{}, nil)

	err := svc.SendPasswordChanged(context.Background(), "alice@example.com", "alice")
	assert.ErrorIs(t, err, ErrEmailNotConfigured)
	assert.Empty(t, *sent)
}

func TestEmailService_SendFailure(t *testing.T) {
	svc, _ := newCapturingEmailService(config.SMTPConfig{Host: "localhost", Port: 25, From: "noreply@example.com"}, errors.New("connection refused"))

	err := svc.SendPasswordChanged(context.Background(), "alice@example.com", "alice")
	assert.EqualError(t, err, "connection refused")
}

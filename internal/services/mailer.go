package services

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

type OTPPurpose string

const (
	PurposeRegistration  OTPPurpose = "registration"
	PurposePasswordReset OTPPurpose = "password_reset"
)

// Mailer delivers one-time codes to users.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, purpose OTPPurpose) error
}

type SMTPMailer struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func (m SMTPMailer) SendOTP(ctx context.Context, to, code string, purpose OTPPurpose) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var auth smtp.Auth
	if m.Username != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	msg := buildOTPMessage(m.From, to, code, purpose)
	if err := smtp.SendMail(addr, auth, m.From, []string{to}, msg); err != nil {
		return WrapError(err, "send otp mail")
	}
	return nil
}

// LogMailer writes codes to the log instead of sending mail. Used when no
// SMTP host is configured.
type LogMailer struct {
	Logger *zap.Logger
}

func (m LogMailer) SendOTP(_ context.Context, to, code string, purpose OTPPurpose) error {
	m.Logger.Info("otp issued", zap.String("to", to), zap.String("purpose", string(purpose)), zap.String("otp", code))
	return nil
}

func buildOTPMessage(from, to, code string, purpose OTPPurpose) []byte {
	subject := "Your verification code"
	intro := "Use the code below to verify your email address."
	validity := RegistrationOTPTTL
	if purpose == PurposePasswordReset {
		subject = "Your password reset code"
		intro = "Use the code below to reset your password. If you did not ask for this, ignore this email."
		validity = ResetOTPTTL
	}
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	fmt.Fprintf(&b, "%s\r\n\r\n    %s\r\n\r\nThe code expires in %d minutes.\r\n", intro, code, int(validity.Minutes()))
	return []byte(b.String())
}

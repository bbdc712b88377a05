package services

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestBuildOTPMessage(t *testing.T) {
	msg := string(buildOTPMessage("noreply@campus.edu", "ada@campus.edu", "482913", PurposeRegistration))
	for _, want := range []string{
		"To: ada@campus.edu\r\n",
		"Subject: Your verification code\r\n",
		"482913",
		"expires in 3 minutes",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q", want)
		}
	}

	reset := string(buildOTPMessage("noreply@campus.edu", "ada@campus.edu", "111111", PurposePasswordReset))
	if !strings.Contains(reset, "password reset") || !strings.Contains(reset, "expires in 10 minutes") {
		t.Errorf("unexpected reset message: %s", reset)
	}
}

func TestLogMailer(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mailer := LogMailer{Logger: zap.New(core)}
	if err := mailer.SendOTP(context.Background(), "ada@campus.edu", "123456", PurposeRegistration); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if logs.FilterMessage("otp issued").Len() != 1 {
		t.Fatal("expected one log entry")
	}
}

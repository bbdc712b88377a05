package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"campusevents-backend/internal/kv"
)

const (
	RegistrationOTPTTL = 3 * time.Minute
	ResetOTPTTL        = 10 * time.Minute
)

// how long a record outlives its code so that late verifications can be
// told apart from unknown emails and a verified email can still register
const otpRetention = 15 * time.Minute

type otpRecord struct {
	Code      string    `json:"otp"`
	ExpiresAt time.Time `json:"expiresAt"`
	Verified  bool      `json:"verified"`
}

// GenerateOTP returns a random six digit code without a leading zero.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}

// OTPStore keeps pending registration codes keyed by email.
type OTPStore struct {
	Store kv.Store
	TTL   time.Duration
	Now   func() time.Time
}

func (o *OTPStore) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func otpKey(email string) string {
	return "otp:register:" + strings.ToLower(strings.TrimSpace(email))
}

func (o *OTPStore) Issue(ctx context.Context, email string) (string, error) {
	code, err := GenerateOTP()
	if err != nil {
		return "", err
	}
	rec := otpRecord{Code: code, ExpiresAt: o.now().Add(o.TTL)}
	if err := o.save(ctx, email, rec); err != nil {
		return "", err
	}
	return code, nil
}

func (o *OTPStore) Verify(ctx context.Context, email, code string) error {
	rec, err := o.load(ctx, email)
	if err != nil {
		return err
	}
	if o.now().After(rec.ExpiresAt) {
		_ = o.Store.Delete(ctx, otpKey(email))
		return ErrBadRequest("OTP has expired. Please request a new one.")
	}
	if subtle.ConstantTimeCompare([]byte(rec.Code), []byte(strings.TrimSpace(code))) != 1 {
		return ErrBadRequest("Invalid OTP")
	}
	rec.Verified = true
	return o.save(ctx, email, rec)
}

// RequireVerified fails unless email passed Verify and has not registered yet.
func (o *OTPStore) RequireVerified(ctx context.Context, email string) error {
	rec, err := o.load(ctx, email)
	if err != nil {
		var serr ServiceError
		if errors.As(err, &serr) {
			return ErrBadRequest("Please verify your email with the OTP first")
		}
		return err
	}
	if !rec.Verified {
		return ErrBadRequest("Please verify your email with the OTP first")
	}
	return nil
}

func (o *OTPStore) Consume(ctx context.Context, email string) error {
	return o.Store.Delete(ctx, otpKey(email))
}

func (o *OTPStore) load(ctx context.Context, email string) (otpRecord, error) {
	raw, err := o.Store.Get(ctx, otpKey(email))
	if errors.Is(err, kv.ErrNotFound) {
		return otpRecord{}, ErrNotFound("No OTP found for this email")
	}
	if err != nil {
		return otpRecord{}, WrapError(err, "load otp")
	}
	var rec otpRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return otpRecord{}, WrapError(err, "decode otp")
	}
	return rec, nil
}

func (o *OTPStore) save(ctx context.Context, email string, rec otpRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return WrapError(o.Store.Set(ctx, otpKey(email), raw, o.TTL+otpRetention), "save otp")
}

package services

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"campusevents-backend/internal/kv"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newOTPStore() (*OTPStore, *testClock, *kv.Memory) {
	clock := &testClock{now: time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)}
	store := kv.NewMemoryWithClock(clock.Now)
	return &OTPStore{Store: store, TTL: RegistrationOTPTTL, Now: clock.Now}, clock, store
}

func statusOf(err error) int {
	var serr ServiceError
	if errors.As(err, &serr) {
		return serr.Status
	}
	return 0
}

func TestGenerateOTPIsSixDigits(t *testing.T) {
	for i := 0; i < 100; i++ {
		code, err := GenerateOTP()
		if err != nil {
			t.Fatalf("GenerateOTP: %v", err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 6 || n < 100000 || n > 999999 {
			t.Fatalf("bad code %q", code)
		}
	}
}

func TestOTPVerifyFlow(t *testing.T) {
	ctx := context.Background()
	otp, _, _ := newOTPStore()

	code, err := otp.Issue(ctx, "New@Campus.edu")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if err := otp.RequireVerified(ctx, "new@campus.edu"); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("unverified email must not register, got %v", err)
	}
	if err := otp.Verify(ctx, "new@campus.edu", "000000"); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	if err := otp.Verify(ctx, "new@campus.edu", code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := otp.RequireVerified(ctx, "new@campus.edu"); err != nil {
		t.Fatalf("RequireVerified: %v", err)
	}
	if err := otp.Consume(ctx, "new@campus.edu"); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if err := otp.RequireVerified(ctx, "new@campus.edu"); err == nil {
		t.Fatal("consumed otp must not allow a second registration")
	}
}

func TestOTPUnknownEmail(t *testing.T) {
	otp, _, _ := newOTPStore()
	err := otp.Verify(context.Background(), "ghost@campus.edu", "123456")
	if statusOf(err) != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestOTPExpiryRemovesRecord(t *testing.T) {
	ctx := context.Background()
	otp, clock, store := newOTPStore()

	code, _ := otp.Issue(ctx, "late@campus.edu")
	clock.Advance(RegistrationOTPTTL + time.Second)

	if err := otp.Verify(ctx, "late@campus.edu", code); statusOf(err) != http.StatusBadRequest {
		t.Fatalf("expected expired error, got %v", err)
	}
	if _, err := store.Get(ctx, otpKey("late@campus.edu")); !errors.Is(err, kv.ErrNotFound) {
		t.Fatalf("expired record should be removed, got %v", err)
	}
}

func TestOTPReissueReplacesCode(t *testing.T) {
	ctx := context.Background()
	otp, _, _ := newOTPStore()

	first, _ := otp.Issue(ctx, "again@campus.edu")
	second, _ := otp.Issue(ctx, "again@campus.edu")
	if first == second {
		t.Skip("codes collided by chance")
	}
	if err := otp.Verify(ctx, "again@campus.edu", first); err == nil {
		t.Fatal("stale code must not verify")
	}
	if err := otp.Verify(ctx, "again@campus.edu", second); err != nil {
		t.Fatalf("latest code should verify: %v", err)
	}
}

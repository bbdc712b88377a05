package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"campusevents-backend/internal/kv"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newStore() (*kv.Memory, *clock) {
	c := &clock{now: time.Date(2025, 5, 5, 9, 0, 0, 0, time.UTC)}
	return kv.NewMemoryWithClock(c.Now), c
}

func TestFixedWindowCapsHits(t *testing.T) {
	ctx := context.Background()
	store, c := newStore()
	limiter := NewFixedWindow(store, "booking:", 5, 15*time.Minute)

	for i := 1; i <= 5; i++ {
		d, err := limiter.Allow(ctx, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("hit %d should pass: %+v %v", i, d, err)
		}
		if d.Remaining != 5-i {
			t.Errorf("hit %d remaining = %d", i, d.Remaining)
		}
	}
	d, _ := limiter.Allow(ctx, "10.0.0.1")
	if d.Allowed {
		t.Fatal("sixth hit must be refused")
	}
	if d.RetryAfter != 15*time.Minute {
		t.Errorf("retry after = %v", d.RetryAfter)
	}

	other, _ := limiter.Allow(ctx, "10.0.0.2")
	if !other.Allowed {
		t.Fatal("other clients are independent")
	}

	c.Advance(15 * time.Minute)
	d, _ = limiter.Allow(ctx, "10.0.0.1")
	if !d.Allowed || d.Remaining != 4 {
		t.Fatalf("window should reset, got %+v", d)
	}
}

type brokenStore struct{ kv.Store }

func (brokenStore) Incr(context.Context, string, time.Duration) (int64, time.Duration, error) {
	return 0, 0, errors.New("redis down")
}

func TestFixedWindowFailsOpen(t *testing.T) {
	limiter := NewFixedWindow(brokenStore{}, "global:", 1, time.Minute)
	d, err := limiter.Allow(context.Background(), "x")
	if err == nil {
		t.Fatal("expected store error to be reported")
	}
	if !d.Allowed {
		t.Fatal("store failure must not block traffic")
	}
}

func TestLockoutBlocksAfterFiveFailures(t *testing.T) {
	ctx := context.Background()
	store, c := newStore()
	lock := NewLockout(store, 5, 10*time.Minute, 10*time.Minute)

	for i := 1; i <= 4; i++ {
		if _, blocked, err := lock.Fail(ctx, "1.1.1.1"); err != nil || blocked {
			t.Fatalf("failure %d blocked early (err=%v)", i, err)
		}
		c.Advance(time.Minute)
	}
	wait, blocked, err := lock.Fail(ctx, "1.1.1.1")
	if err != nil || !blocked || wait != 10*time.Minute {
		t.Fatalf("fifth failure should block: %v %v %v", wait, blocked, err)
	}

	if _, blocked, _ := lock.Blocked(ctx, "1.1.1.1"); !blocked {
		t.Fatal("expected pre-check to report block")
	}
	if _, blocked, _ := lock.Blocked(ctx, "2.2.2.2"); blocked {
		t.Fatal("a different client must not be blocked")
	}

	c.Advance(10 * time.Minute)
	if _, blocked, _ := lock.Blocked(ctx, "1.1.1.1"); blocked {
		t.Fatal("block should lapse after 10 minutes")
	}
	if _, blocked, _ := lock.Fail(ctx, "1.1.1.1"); blocked {
		t.Fatal("counter should restart after block lapses")
	}
}

func TestLockoutCounterSelfExpires(t *testing.T) {
	ctx := context.Background()
	store, c := newStore()
	lock := NewLockout(store, 5, 10*time.Minute, 10*time.Minute)

	for i := 0; i < 4; i++ {
		_, _, _ = lock.Fail(ctx, "3.3.3.3")
	}
	c.Advance(10 * time.Minute)
	if _, blocked, _ := lock.Fail(ctx, "3.3.3.3"); blocked {
		t.Fatal("stale failures should have expired")
	}
}

func TestLockoutSlidesWithEachFailure(t *testing.T) {
	ctx := context.Background()
	store, c := newStore()
	lock := NewLockout(store, 5, 10*time.Minute, 10*time.Minute)

	for i := 0; i < 4; i++ {
		_, _, _ = lock.Fail(ctx, "4.4.4.4")
		c.Advance(9 * time.Minute)
	}
	if _, blocked, _ := lock.Fail(ctx, "4.4.4.4"); !blocked {
		t.Fatal("failures within the sliding window should accumulate")
	}
}

func TestLockoutResetClears(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore()
	lock := NewLockout(store, 2, time.Minute, time.Minute)

	_, _, _ = lock.Fail(ctx, "5.5.5.5")
	if err := lock.Reset(ctx, "5.5.5.5"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, blocked, _ := lock.Fail(ctx, "5.5.5.5"); blocked {
		t.Fatal("reset should clear prior failures")
	}
}

package ratelimit

import (
	"context"
	"errors"
	"time"

	"campusevents-backend/internal/kv"
)

// Lockout tracks consecutive failed logins per client. Each failure pushes
// the counter's expiry out by Window; reaching MaxFailures blocks the client
// for Block. A success clears everything.
type Lockout struct {
	store       kv.Store
	MaxFailures int
	Window      time.Duration
	Block       time.Duration
}

func NewLockout(store kv.Store, maxFailures int, window, block time.Duration) *Lockout {
	return &Lockout{store: store, MaxFailures: maxFailures, Window: window, Block: block}
}

func failKey(client string) string  { return "login:fail:" + client }
func blockKey(client string) string { return "login:block:" + client }

// Blocked reports whether client is currently locked out and for how long.
func (l *Lockout) Blocked(ctx context.Context, client string) (time.Duration, bool, error) {
	ttl, err := l.store.TTL(ctx, blockKey(client))
	if errors.Is(err, kv.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return ttl, true, nil
}

// Fail records a failed attempt. It returns true with the block duration
// once the failure threshold is reached.
func (l *Lockout) Fail(ctx context.Context, client string) (time.Duration, bool, error) {
	count, _, err := l.store.Incr(ctx, failKey(client), l.Window)
	if err != nil {
		return 0, false, err
	}
	if err := l.store.Expire(ctx, failKey(client), l.Window); err != nil {
		return 0, false, err
	}
	if count < int64(l.MaxFailures) {
		return 0, false, nil
	}
	if err := l.store.Set(ctx, blockKey(client), []byte("1"), l.Block); err != nil {
		return 0, false, err
	}
	if err := l.store.Delete(ctx, failKey(client)); err != nil {
		return 0, false, err
	}
	return l.Block, true, nil
}

func (l *Lockout) Reset(ctx context.Context, client string) error {
	return l.store.Delete(ctx, failKey(client), blockKey(client))
}

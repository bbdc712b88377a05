// Package ratelimit implements per-key request limits and login lockout on
// top of a shared kv.Store.
package ratelimit

import (
	"context"
	"time"

	"campusevents-backend/internal/kv"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// FixedWindow allows up to Limit hits per key within each Window. The window
// starts at the first hit and does not slide.
type FixedWindow struct {
	store  kv.Store
	prefix string
	Limit  int
	Window time.Duration
}

func NewFixedWindow(store kv.Store, prefix string, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{store: store, prefix: prefix, Limit: limit, Window: window}
}

// Allow records one hit for key. On store failure the hit is allowed and
// the error returned for the caller to log.
func (l *FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	count, ttl, err := l.store.Incr(ctx, l.prefix+key, l.Window)
	if err != nil {
		return Decision{Allowed: true, Limit: l.Limit, Remaining: l.Limit}, err
	}
	if ttl <= 0 {
		ttl = l.Window
	}
	remaining := l.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:    count <= int64(l.Limit),
		Limit:      l.Limit,
		Remaining:  remaining,
		RetryAfter: ttl,
	}, nil
}

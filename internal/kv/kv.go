// Package kv is the shared short-lived state used for OTPs, login lockout
// and rate-limit windows. Memory serves single-instance deployments and
// tests; Redis shares the state across instances.
package kv

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("kv: key not found")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr adds one to the counter at key. The window ttl is applied only when
	// the counter is created; the returned duration is the time left on it.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL returns ErrNotFound when the key is absent.
	TTL(ctx context.Context, key string) (time.Duration, error)
	Close() error
}

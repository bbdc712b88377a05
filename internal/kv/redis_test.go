package kv

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func redisStore(t *testing.T) *Redis {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	store, err := NewRedis(context.Background(), url, "test:"+uuid.NewString()+":")
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRedisRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t)

	if _, err := store.Get(ctx, "nothing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, err := store.Get(ctx, "k")
	if err != nil || string(value) != "v" {
		t.Fatalf("Get = %q, %v", value, err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.TTL(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestRedisIncrWindow(t *testing.T) {
	ctx := context.Background()
	store := redisStore(t)

	count, ttl, err := store.Incr(ctx, "c", time.Minute)
	if err != nil || count != 1 || ttl <= 0 || ttl > time.Minute {
		t.Fatalf("first Incr = %d, %v, %v", count, ttl, err)
	}
	count, _, _ = store.Incr(ctx, "c", time.Minute)
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

package kv

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

func NewMemory() *Memory {
	return newMemory(time.Now, time.Minute)
}

// NewMemoryWithClock returns a store that reads time from now and never
// sweeps in the background; expired keys are dropped on access.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return newMemory(now, 0)
}

func newMemory(now func() time.Time, sweep time.Duration) *Memory {
	m := &Memory{
		entries: map[string]entry{},
		now:     now,
		stop:    make(chan struct{}),
	}
	if sweep > 0 {
		go m.cleanup(sweep)
	}
	return m
}

func (m *Memory) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.mu.Lock()
			now := m.now()
			for key, e := range m.entries {
				if e.expired(now) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}

// lookup must be called with mu held.
func (m *Memory) lookup(key string) (entry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return entry{}, false
	}
	if e.expired(m.now()) {
		delete(m.entries, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return m.now().Add(ttl)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	m.mu.Lock()
	m.entries[key] = entry{value: stored, expiresAt: m.deadline(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	for _, key := range keys {
		delete(m.entries, key)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) Incr(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	var count int64
	if ok {
		parsed, err := strconv.ParseInt(string(e.value), 10, 64)
		if err != nil {
			return 0, 0, err
		}
		count = parsed
	} else {
		e = entry{expiresAt: m.deadline(window)}
	}
	count++
	e.value = []byte(strconv.FormatInt(count, 10))
	m.entries[key] = e
	return count, m.remaining(e), nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return nil
	}
	e.expiresAt = m.deadline(ttl)
	m.entries[key] = e
	return nil
}

func (m *Memory) TTL(_ context.Context, key string) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.lookup(key)
	if !ok {
		return 0, ErrNotFound
	}
	return m.remaining(e), nil
}

func (m *Memory) remaining(e entry) time.Duration {
	if e.expiresAt.IsZero() {
		return 0
	}
	return e.expiresAt.Sub(m.now())
}

func (m *Memory) Close() error {
	m.once.Do(func() { close(m.stop) })
	return nil
}

package synchronizer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	pkgredis "github.com/angelmondragon/wishlist-backend/pkg/redis"
	"github.com/google/uuid"
)

// DefaultTriggerSource is used when the caller does not name the UI control
// that fired the add.
const DefaultTriggerSource = "popup"

// Debouncer decides whether an add-item trigger should run. Calls for the
// same user and source inside the window are dropped. Release reopens the
// window after an accepted trigger failed.
type Debouncer interface {
	Allow(ctx context.Context, userID uuid.UUID, source string) (bool, error)
	Release(ctx context.Context, userID uuid.UUID, source string) error
}

func debounceKey(userID uuid.UUID, source string) string {
	return userID.String() + ":" + normalizeSource(source)
}

func normalizeSource(source string) string {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return DefaultTriggerSource
	}
	return source
}

// MemoryDebouncer keeps the last accepted trigger per key in process.
// Only accepted triggers move the window forward. Expired keys are swept on
// the next Allow.
type MemoryDebouncer struct {
	mu     sync.Mutex
	window time.Duration
	now    func() time.Time
	last   map[string]time.Time
}

// NewMemoryDebouncer builds an in-process debouncer with the given window.
func NewMemoryDebouncer(window time.Duration) *MemoryDebouncer {
	return newMemoryDebouncer(window, time.Now)
}

func newMemoryDebouncer(window time.Duration, now func() time.Time) *MemoryDebouncer {
	return &MemoryDebouncer{
		window: window,
		now:    now,
		last:   make(map[string]time.Time),
	}
}

func (d *MemoryDebouncer) Allow(_ context.Context, userID uuid.UUID, source string) (bool, error) {
	if d.window <= 0 {
		return true, nil
	}
	key := debounceKey(userID, source)
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	for k, last := range d.last {
		if now.Sub(last) >= d.window {
			delete(d.last, k)
		}
	}
	if _, ok := d.last[key]; ok {
		return false, nil
	}
	d.last[key] = now
	return true, nil
}

func (d *MemoryDebouncer) Release(_ context.Context, userID uuid.UUID, source string) error {
	d.mu.Lock()
	delete(d.last, debounceKey(userID, source))
	d.mu.Unlock()
	return nil
}

// Len reports how many windows are currently tracked.
func (d *MemoryDebouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.last)
}

// RedisDebouncer shares the debounce window across API instances using a
// SETNX key that expires after the window.
type RedisDebouncer struct {
	client *pkgredis.Client
	window time.Duration
}

// NewRedisDebouncer builds a debouncer backed by redis.
func NewRedisDebouncer(client *pkgredis.Client, window time.Duration) (*RedisDebouncer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	return &RedisDebouncer{client: client, window: window}, nil
}

func (d *RedisDebouncer) Allow(ctx context.Context, userID uuid.UUID, source string) (bool, error) {
	if d.window <= 0 {
		return true, nil
	}
	return d.client.SetNX(ctx, d.client.DebounceKey(userID.String(), normalizeSource(source)), "1", d.window)
}

func (d *RedisDebouncer) Release(ctx context.Context, userID uuid.UUID, source string) error {
	if d.window <= 0 {
		return nil
	}
	return d.client.Del(ctx, d.client.DebounceKey(userID.String(), normalizeSource(source)))
}

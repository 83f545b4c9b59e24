// Package lock provides short-lived named locks used to serialize work on a key.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = errors.New("lock not obtained")

// Handle is a held lock.
type Handle interface {
	Release(ctx context.Context) error
}

// Locker obtains named locks without waiting.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Handle, error)
}

// New returns a Redis backed locker when a client is available and an in-process one otherwise.
func New(client *redis.Client) Locker {
	if client == nil {
		return NewMemory()
	}
	return NewRedis(client)
}

// RedisLocker coordinates across API replicas through bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
}

// NewRedis wraps a go-redis client.
func NewRedis(client redislock.RedisClient) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

// TryLock obtains key for ttl or fails fast with ErrNotObtained.
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Handle, error) {
	lk, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrNotObtained
	}
	if err != nil {
		return nil, err
	}
	return lk, nil
}

// MemoryLocker is a keyed mutex for single-instance deployments and tests.
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]*memoryHandle
	now  func() time.Time
}

// NewMemory creates an empty in-process locker.
func NewMemory() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]*memoryHandle), now: time.Now}
}

type memoryHandle struct {
	owner   *MemoryLocker
	key     string
	expires time.Time
}

// TryLock obtains key unless a live holder exists; expired holders are evicted.
func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Handle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if current, ok := l.held[key]; ok && (ttl <= 0 || now.Before(current.expires)) {
		return nil, ErrNotObtained
	}

	h := &memoryHandle{owner: l, key: key, expires: now.Add(ttl)}
	l.held[key] = h
	return h, nil
}

func (h *memoryHandle) Release(context.Context) error {
	h.owner.mu.Lock()
	defer h.owner.mu.Unlock()
	if h.owner.held[h.key] == h {
		delete(h.owner.held, h.key)
	}
	return nil
}

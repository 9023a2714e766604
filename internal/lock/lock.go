// Package lock serializes writers of the same session or user document.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"chatmemo/internal/redis"
)

// Locker grants exclusive access to a key until the returned unlock is called.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

type keyedEntry struct {
	ch   chan struct{}
	refs int
}

// KeyedMutex is an in-process Locker. Entries are dropped once nobody holds or waits on them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*keyedEntry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*keyedEntry)}
}

func (m *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	entry, ok := m.entries[key]
	if !ok {
		entry = &keyedEntry{ch: make(chan struct{}, 1)}
		m.entries[key] = entry
	}
	entry.refs++
	m.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			m.release(key, entry)
		})
	}, nil
}

func (m *KeyedMutex) release(key string, entry *keyedEntry) {
	m.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(m.entries, key)
	}
	m.mu.Unlock()
}

const (
	defaultLockTTL   = 2 * time.Minute
	defaultRetryWait = 25 * time.Millisecond
)

// ErrLockHeld is returned when ctx expires while waiting for the lock.
var ErrLockHeld = errors.New("lock held by another owner")

var unlockScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker is a Locker shared between processes through SET NX PX.
// The TTL bounds how long a crashed owner can block a key.
type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
}

func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{client: client, ttl: ttl, wait: defaultRetryWait}
}

func lockKey(key string) string {
	return fmt.Sprintf("chatmemo:lock:%s", key)
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	rk := lockKey(key)
	for {
		ok, err := l.client.SetNX(ctx, rk, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
		case <-time.After(l.wait):
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's context may already be done when unlocking
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if _, err := l.client.RunScript(releaseCtx, unlockScript, []string{rk}, token); err != nil {
				log.Printf("release lock %s: %v", key, err)
			}
		})
	}, nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate lock token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

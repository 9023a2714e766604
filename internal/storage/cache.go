package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/goccy/go-json"
	gocache "github.com/patrickmn/go-cache"

	"chatmemo/internal/models"
	"chatmemo/internal/redis"
)

const defaultCacheTTL = 30 * time.Minute

// SessionCache holds encoded session documents keyed by session id.
type SessionCache interface {
	Get(ctx context.Context, id string) ([]byte, bool)
	Set(ctx context.Context, id string, data []byte)
	Invalidate(ctx context.Context, id string)
}

// CachedSessionStore is a read-through cache in front of another SessionStore.
// Cached values are encoded documents, so every Load hands out a private copy.
type CachedSessionStore struct {
	SessionStore
	cache SessionCache
}

func NewCachedSessionStore(inner SessionStore, cache SessionCache) *CachedSessionStore {
	return &CachedSessionStore{SessionStore: inner, cache: cache}
}

func (s *CachedSessionStore) Load(ctx context.Context, id string) (*models.Session, error) {
	if data, ok := s.cache.Get(ctx, id); ok {
		var session models.Session
		if err := json.Unmarshal(data, &session); err == nil {
			if session.Memory == nil {
				session.Memory = make(map[string]string)
			}
			return &session, nil
		}
		s.cache.Invalidate(ctx, id)
	}
	session, err := s.SessionStore.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, session)
	return session, nil
}

func (s *CachedSessionStore) Save(ctx context.Context, session *models.Session) error {
	if err := s.SessionStore.Save(ctx, session); err != nil {
		s.cache.Invalidate(ctx, session.ID)
		return err
	}
	s.remember(ctx, session)
	return nil
}

func (s *CachedSessionStore) Delete(ctx context.Context, id string) error {
	s.cache.Invalidate(ctx, id)
	return s.SessionStore.Delete(ctx, id)
}

func (s *CachedSessionStore) remember(ctx context.Context, session *models.Session) {
	data, err := json.Marshal(session)
	if err != nil {
		log.Printf("session cache marshal failed: %v", err)
		return
	}
	s.cache.Set(ctx, session.ID, data)
}

// MemoryCache keeps sessions in process memory.
type MemoryCache struct {
	inner *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &MemoryCache{inner: gocache.New(ttl, 2*ttl)}
}

func (c *MemoryCache) Get(_ context.Context, id string) ([]byte, bool) {
	val, ok := c.inner.Get(id)
	if !ok {
		return nil, false
	}
	data, ok := val.([]byte)
	return data, ok
}

func (c *MemoryCache) Set(_ context.Context, id string, data []byte) {
	c.inner.SetDefault(id, data)
}

func (c *MemoryCache) Invalidate(_ context.Context, id string) {
	c.inner.Delete(id)
}

// RedisCache shares cached sessions between instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func sessionKey(id string) string {
	return fmt.Sprintf("chatmemo:session:%s", id)
}

func (c *RedisCache) Get(ctx context.Context, id string) ([]byte, bool) {
	raw, err := c.client.Get(ctx, sessionKey(id))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("session cache get failed: %v", err)
		}
		return nil, false
	}
	return []byte(raw), true
}

func (c *RedisCache) Set(ctx context.Context, id string, data []byte) {
	if err := c.client.Set(ctx, sessionKey(id), data, c.ttl); err != nil {
		log.Printf("session cache set failed: %v", err)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id string) {
	if err := c.client.Del(ctx, sessionKey(id)); err != nil && err != redis.ErrCacheMiss {
		log.Printf("session cache invalidate failed: %v", err)
	}
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"chatmemo/internal/config"
	"chatmemo/internal/models"
	"chatmemo/internal/redis"
)

func TestWriteJSONLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	for i := 0; i < 3; i++ {
		if err := WriteJSON(path, map[string]int{"n": i}); err != nil {
			t.Fatalf("write json: %v", err)
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "doc.json" {
		t.Fatalf("unexpected directory content: %v", entries)
	}
	var got map[string]int
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if got["n"] != 2 {
		t.Fatalf("expected last write to win, got %v", got)
	}
}

func TestReadJSONMissing(t *testing.T) {
	var v map[string]string
	err := ReadJSON(filepath.Join(t.TempDir(), "missing.json"), &v)
	if !errors.Is(err, ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestFileSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := store.Load(ctx, "abc123"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := store.Load(ctx, "../etc/passwd"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found for invalid id, got %v", err)
	}

	now := time.Now().UTC()
	older := &models.Session{ID: "older", Title: "a", UserID: "u1", CreatedAt: now, UpdatedAt: now}
	newer := &models.Session{ID: "newer", UserID: "u1", CreatedAt: now, UpdatedAt: now.Add(time.Minute),
		Messages: []models.Message{{Role: models.RoleUser, Content: strings.Repeat("x", 50), Timestamp: now}}}
	for _, s := range []*models.Session{older, newer} {
		if err := store.Save(ctx, s); err != nil {
			t.Fatalf("save %s: %v", s.ID, err)
		}
	}

	loaded, err := store.Load(ctx, "older")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Memory == nil {
		t.Fatalf("expected memory map to be initialized")
	}

	metas, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(metas) != 2 || metas[0].ID != "newer" {
		t.Fatalf("expected newest first, got %+v", metas)
	}
	if metas[0].Title != strings.Repeat("x", 40) || metas[0].Messages != 1 {
		t.Fatalf("unexpected meta: %+v", metas[0])
	}

	if err := store.Delete(ctx, "older"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "older"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestFileSessionStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileSessionStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	if _, err := store.Load(context.Background(), "broken"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected corrupt session to read as not found, got %v", err)
	}
	metas, err := store.List(context.Background())
	if err != nil || len(metas) != 0 {
		t.Fatalf("expected corrupt file to be skipped, got %v %v", metas, err)
	}
}

func TestFileMemoryRepositoryDefaults(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	repo, err := NewFileMemoryRepository(dir)
	if err != nil {
		t.Fatalf("new repo: %v", err)
	}
	got, err := repo.Load(ctx, "u1")
	if err != nil || got == nil || len(got) != 0 {
		t.Fatalf("expected empty mapping, got %v %v", got, err)
	}

	if err := os.WriteFile(filepath.Join(dir, "u2_memory.json"), []byte("[1,2"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}
	got, err = repo.Load(ctx, "u2")
	if err != nil || len(got) != 0 {
		t.Fatalf("expected corrupt memory to read as empty, got %v %v", got, err)
	}

	if err := repo.Save(ctx, "u1", map[string]string{"name": "Ana"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "u1_memory.json")); err != nil {
		t.Fatalf("expected memory document on disk: %v", err)
	}
	got, _ = repo.Load(ctx, "u1")
	if got["name"] != "Ana" {
		t.Fatalf("unexpected memory %v", got)
	}
}

func TestCachedSessionStoreHandsOutCopies(t *testing.T) {
	ctx := context.Background()
	inner, err := NewFileSessionStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store := NewCachedSessionStore(inner, NewMemoryCache(time.Minute))
	session := &models.Session{ID: "s1", Title: "t", UserID: "u1", Memory: map[string]string{}}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save: %v", err)
	}

	first, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	first.Title = "mutated"
	first.Memory["name"] = "X"

	second, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("load again: %v", err)
	}
	if second.Title != "t" || len(second.Memory) != 0 {
		t.Fatalf("cache leaked caller mutation: %+v", second)
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Load(ctx, "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestRedisCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
	defer client.Close()

	cache := NewRedisCache(client, time.Minute)
	if _, ok := cache.Get(ctx, "s1"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	cache.Set(ctx, "s1", []byte(`{"id":"s1"}`))
	data, ok := cache.Get(ctx, "s1")
	if !ok || string(data) != `{"id":"s1"}` {
		t.Fatalf("unexpected cached value %q %v", data, ok)
	}
	if ttl := mr.TTL(sessionKey("s1")); ttl != time.Minute {
		t.Fatalf("expected ttl to be applied, got %v", ttl)
	}
	cache.Invalidate(ctx, "s1")
	if _, ok := cache.Get(ctx, "s1"); ok {
		t.Fatalf("expected miss after invalidate")
	}
}

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	if err := Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate should be repeatable: %v", err)
	}
	if _, err := Open("oracle", cfg); err == nil {
		t.Fatalf("expected error for unknown database")
	}
}

func TestBroadcastCacheInvalidatesPeers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr := miniredis.RunT(t)
	newClient := func() *redis.Client {
		c := redis.Wrap(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}))
		t.Cleanup(func() { c.Close() })
		return c
	}

	localA := NewMemoryCache(time.Minute)
	localB := NewMemoryCache(time.Minute)
	a := NewBroadcastCache(localA, newClient())
	b := NewBroadcastCache(localB, newClient())
	if err := a.Listen(ctx); err != nil {
		t.Fatalf("listen a: %v", err)
	}
	if err := b.Listen(ctx); err != nil {
		t.Fatalf("listen b: %v", err)
	}

	localB.Set(ctx, "s1", []byte("old"))
	a.Set(ctx, "s1", []byte("new"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := localB.Get(ctx, "s1"); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("peer cache was not invalidated")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if data, ok := a.Get(ctx, "s1"); !ok || string(data) != "new" {
		t.Fatalf("writer lost its own entry: %q %v", data, ok)
	}
}

// Package memory keeps the per-user facts learned across sessions.
package memory

import (
	"context"
	"fmt"

	"chatmemo/internal/lock"
	"chatmemo/internal/storage"
)

// Store merges extracted facts into a user's persistent memory.
type Store struct {
	repo   storage.MemoryRepository
	locker lock.Locker
}

func NewStore(repo storage.MemoryRepository, locker lock.Locker) *Store {
	if locker == nil {
		locker = lock.NewKeyedMutex()
	}
	return &Store{repo: repo, locker: locker}
}

// Get returns the stored facts for a user, empty when none were recorded yet.
func (s *Store) Get(ctx context.Context, userID string) (map[string]string, error) {
	return s.repo.Load(ctx, userID)
}

// Merge overwrites keys whose new value is non-empty and persists the result.
// Merging the same facts twice leaves the stored document unchanged.
func (s *Store) Merge(ctx context.Context, userID string, facts map[string]string) (map[string]string, error) {
	unlock, err := s.locker.Lock(ctx, "user:"+userID)
	if err != nil {
		return nil, fmt.Errorf("lock user memory: %w", err)
	}
	defer unlock()

	current, err := s.repo.Load(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user memory: %w", err)
	}
	merged := MergeFacts(current, facts)
	if err := s.repo.Save(ctx, userID, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// MergeFacts applies facts onto dst in place and returns it. Empty values never overwrite.
func MergeFacts(dst, facts map[string]string) map[string]string {
	if dst == nil {
		dst = make(map[string]string, len(facts))
	}
	for key, value := range facts {
		if value == "" {
			continue
		}
		dst[key] = value
	}
	return dst
}

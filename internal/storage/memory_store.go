package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
)

// MemoryRepository persists per-user fact mappings.
type MemoryRepository interface {
	Load(ctx context.Context, userID string) (map[string]string, error)
	Save(ctx context.Context, userID string, facts map[string]string) error
}

// FileMemoryRepository stores users/<user_id>_memory.json documents.
type FileMemoryRepository struct {
	dir string
}

func NewFileMemoryRepository(dir string) (*FileMemoryRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create users dir: %w", err)
	}
	return &FileMemoryRepository{dir: dir}, nil
}

func (r *FileMemoryRepository) path(userID string) string {
	return filepath.Join(r.dir, userID+"_memory.json")
}

// Load never fails on missing or corrupt documents; both read as an empty mapping.
func (r *FileMemoryRepository) Load(ctx context.Context, userID string) (map[string]string, error) {
	if !validID.MatchString(userID) {
		return nil, errors.New("invalid user id")
	}
	facts := make(map[string]string)
	if err := ReadJSON(r.path(userID), &facts); err != nil {
		if !errors.Is(err, ErrNotExist) {
			log.Printf("load memory for user %s: %v", userID, err)
		}
		return make(map[string]string), nil
	}
	if facts == nil {
		facts = make(map[string]string)
	}
	return facts, nil
}

func (r *FileMemoryRepository) Save(ctx context.Context, userID string, facts map[string]string) error {
	if !validID.MatchString(userID) {
		return errors.New("invalid user id")
	}
	if err := WriteJSON(r.path(userID), facts); err != nil {
		return fmt.Errorf("save memory: %w", err)
	}
	return nil
}

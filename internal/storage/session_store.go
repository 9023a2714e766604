package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"chatmemo/internal/models"
)

// ErrSessionNotFound is returned when no readable session document exists for an id.
var ErrSessionNotFound = errors.New("session not found")

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// SessionStore persists chat sessions.
type SessionStore interface {
	Load(ctx context.Context, id string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.SessionMeta, error)
}

// FileSessionStore keeps one JSON document per session under dir.
type FileSessionStore struct {
	dir string
}

// NewFileSessionStore creates the directory if needed.
func NewFileSessionStore(dir string) (*FileSessionStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sessions dir: %w", err)
	}
	return &FileSessionStore{dir: dir}, nil
}

func (s *FileSessionStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Load returns ErrSessionNotFound for unknown ids and for unreadable documents.
func (s *FileSessionStore) Load(ctx context.Context, id string) (*models.Session, error) {
	if !validID.MatchString(id) {
		return nil, ErrSessionNotFound
	}
	var session models.Session
	if err := ReadJSON(s.path(id), &session); err != nil {
		if !errors.Is(err, ErrNotExist) {
			log.Printf("load session %s: %v", id, err)
		}
		return nil, ErrSessionNotFound
	}
	if session.Memory == nil {
		session.Memory = make(map[string]string)
	}
	return &session, nil
}

func (s *FileSessionStore) Save(ctx context.Context, session *models.Session) error {
	if session == nil || !validID.MatchString(session.ID) {
		return errors.New("invalid session id")
	}
	if err := WriteJSON(s.path(session.ID), session); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *FileSessionStore) Delete(ctx context.Context, id string) error {
	if !validID.MatchString(id) {
		return ErrSessionNotFound
	}
	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// List returns every readable session, most recently updated first.
func (s *FileSessionStore) List(ctx context.Context) ([]models.SessionMeta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]models.SessionMeta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		var session models.Session
		if err := ReadJSON(filepath.Join(s.dir, name), &session); err != nil {
			log.Printf("skip session file %s: %v", name, err)
			continue
		}
		if session.ID == "" {
			continue
		}
		out = append(out, session.Meta())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

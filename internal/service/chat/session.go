package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"chatmemo/internal/export"
	"chatmemo/internal/models"
)

// newSessionID returns 12 lowercase hex characters from a random UUID.
func newSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CreateSession stores an empty session owned by the default user.
func (s *Service) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = models.DefaultTitle
	}
	now := s.now()
	session := &models.Session{
		ID:        newSessionID(),
		Title:     title,
		UserID:    s.defaultUser,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []models.Message{},
		Memory:    map[string]string{},
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// ListSessions returns session summaries, most recently updated first.
func (s *Service) ListSessions(ctx context.Context) ([]models.SessionMeta, error) {
	return s.sessions.List(ctx)
}

func (s *Service) GetSession(ctx context.Context, id string) (*models.Session, error) {
	return s.sessions.Load(ctx, id)
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	unlock, err := s.locker.Lock(ctx, "session:"+id)
	if err != nil {
		return fmt.Errorf("lock session: %w", err)
	}
	defer unlock()
	return s.sessions.Delete(ctx, id)
}

// SessionMemory returns the facts learned within one session.
func (s *Service) SessionMemory(ctx context.Context, id string) (map[string]string, error) {
	session, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return session.Memory, nil
}

// UserMemory returns the facts learned across every session of a user.
func (s *Service) UserMemory(ctx context.Context, userID string) (map[string]string, error) {
	if userID == "" {
		userID = s.defaultUser
	}
	return s.memory.Get(ctx, userID)
}

// Export renders a session. Unknown sessions win over unknown formats.
func (s *Service) Export(ctx context.Context, id, format string) (*export.File, error) {
	if s.exporter == nil {
		return nil, fmt.Errorf("exports are not configured")
	}
	session, err := s.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exporter.Export(ctx, session, format)
}

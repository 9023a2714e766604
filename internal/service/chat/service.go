// Package chat orchestrates sessions and conversation turns.
package chat

import (
	"context"
	"errors"
	"log"
	"time"

	"chatmemo/internal/analytics"
	"chatmemo/internal/export"
	"chatmemo/internal/facts"
	"chatmemo/internal/lock"
	"chatmemo/internal/memory"
	"chatmemo/internal/models"
	"chatmemo/internal/service/ai"
	"chatmemo/internal/storage"
)

// ErrSessionNotFound is returned for unknown, deleted or unreadable sessions.
var ErrSessionNotFound = storage.ErrSessionNotFound

// Dependencies wires the collaborators of a Service. Analytics, Locker and
// Extractor are optional.
type Dependencies struct {
	Sessions    storage.SessionStore
	Memory      *memory.Store
	Engine      ai.ReplyEngine
	Exporter    *export.Exporter
	Analytics   analytics.Sink
	Locker      lock.Locker
	Extractor   *facts.Extractor
	DefaultUser string
}

type Service struct {
	sessions    storage.SessionStore
	memory      *memory.Store
	engine      ai.ReplyEngine
	exporter    *export.Exporter
	analytics   analytics.Sink
	locker      lock.Locker
	extractor   *facts.Extractor
	defaultUser string
	now         func() time.Time
}

func NewService(deps Dependencies) (*Service, error) {
	if deps.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if deps.Memory == nil {
		return nil, errors.New("memory store is required")
	}
	if deps.Engine == nil {
		return nil, errors.New("reply engine is required")
	}
	s := &Service{
		sessions:    deps.Sessions,
		memory:      deps.Memory,
		engine:      deps.Engine,
		exporter:    deps.Exporter,
		analytics:   deps.Analytics,
		locker:      deps.Locker,
		extractor:   deps.Extractor,
		defaultUser: deps.DefaultUser,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.analytics == nil {
		s.analytics = analytics.Nop{}
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.extractor == nil {
		s.extractor = facts.NewExtractor()
	}
	if s.defaultUser == "" {
		s.defaultUser = "u1"
	}
	return s, nil
}

// Mode reports which reply engine is active.
func (s *Service) Mode() string {
	return s.engine.Mode()
}

// RecordEvent stores a client-reported analytics event. Failures are logged only.
func (s *Service) RecordEvent(ctx context.Context, event models.Event) {
	if event.UserID == "" {
		event.UserID = s.defaultUser
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.analytics.Record(ctx, event); err != nil {
		log.Printf("record analytics event %s: %v", event.Type, err)
	}
}

// stamp returns a timestamp strictly after prev.
func (s *Service) stamp(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

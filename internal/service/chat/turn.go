package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"chatmemo/internal/memory"
	"chatmemo/internal/metrics"
	"chatmemo/internal/models"
	"chatmemo/internal/service/ai"
	"chatmemo/internal/telemetry"
)

// TurnResult is the outcome of one user message.
type TurnResult struct {
	Reply  string            `json:"reply"`
	Memory map[string]string `json:"memory"`
}

// HandleTurn appends the user message, learns facts, generates the reply and
// persists the session. Nothing is written when the session does not exist.
func (s *Service) HandleTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "chat.turn",
		trace.WithAttributes(
			attribute.String("session.id", sessionID),
			attribute.String("reply.mode", s.engine.Mode()),
		),
	)
	defer span.End()

	result, err := s.handleTurn(ctx, sessionID, userText)
	outcome := turnOutcome(err)
	metrics.RecordTurn(outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return result, err
}

func (s *Service) handleTurn(ctx context.Context, sessionID, userText string) (*TurnResult, error) {
	unlock, err := s.locker.Lock(ctx, "session:"+sessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	session, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID == "" {
		session.UserID = s.defaultUser
	}
	prior := session.Messages[:len(session.Messages):len(session.Messages)]

	session.Messages = append(prior, models.Message{
		Role:      models.RoleUser,
		Content:   userText,
		Timestamp: s.now(),
	})
	s.record(ctx, session, models.EventUserMessage, userText)

	found := s.extractor.Extract(userText)
	if len(found) > 0 {
		metrics.RecordFacts(found)
		session.Memory = memory.MergeFacts(session.Memory, found)
		if _, err := s.memory.Merge(ctx, session.UserID, found); err != nil {
			log.Printf("merge memory for user %s: %v", session.UserID, err)
		}
	}

	view := *session
	view.Messages = prior
	reply, err := s.engine.Reply(ctx, &view, userText)
	if err != nil {
		return nil, err
	}
	metrics.RecordReply(s.engine.Mode())

	session.Messages = append(session.Messages, models.Message{
		Role:      models.RoleAssistant,
		Content:   reply,
		Timestamp: s.now(),
	})
	s.record(ctx, session, models.EventAssistantMessage, reply)

	if session.Title == models.DefaultTitle && len(session.Messages) > 0 {
		session.Title = models.Truncate(session.Messages[0].Content, models.TitleLength)
	}
	session.UpdatedAt = s.stamp(session.UpdatedAt)
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	mem := make(map[string]string, len(session.Memory))
	for k, v := range session.Memory {
		mem[k] = v
	}
	return &TurnResult{Reply: reply, Memory: mem}, nil
}

func (s *Service) record(ctx context.Context, session *models.Session, eventType, text string) {
	s.RecordEvent(ctx, models.Event{
		Type:      eventType,
		SessionID: session.ID,
		UserID:    session.UserID,
		Data:      map[string]any{"len": utf8.RuneCountInString(text)},
	})
}

func turnOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, ai.ErrCompletionTimeout):
		return "timeout"
	case errors.Is(err, ai.ErrCompletion):
		return "completion_error"
	default:
		return "error"
	}
}

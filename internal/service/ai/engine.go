package ai

import (
	"context"
	"errors"

	"chatmemo/internal/models"
)

// Reply modes reported by engines.
const (
	ModeLLM      = "llm"
	ModeFallback = "fallback"
)

var (
	// ErrCompletion wraps any failure of the completion service.
	ErrCompletion = errors.New("completion failed")
	// ErrCompletionTimeout is returned when the completion deadline expires.
	ErrCompletionTimeout = errors.New("completion timed out")
)

// ReplyEngine produces the assistant reply for a turn.
// session.Messages holds the history prior to userText; session.Memory is already merged.
type ReplyEngine interface {
	Reply(ctx context.Context, session *models.Session, userText string) (string, error)
	Mode() string
}

// Completer is the outbound completion service.
type Completer interface {
	Complete(ctx context.Context, systemPrompt string, history []models.Message, model string, temperature float64) (string, error)
}

// NewEngine picks the reply strategy once: LLM when a completer is available, rules otherwise.
func NewEngine(completer Completer, opts LLMOptions) ReplyEngine {
	if completer == nil {
		return NewRuleEngine(nil)
	}
	return NewLLMEngine(completer, opts)
}

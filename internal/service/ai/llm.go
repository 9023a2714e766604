package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"chatmemo/internal/config"
	"chatmemo/internal/metrics"
	"chatmemo/internal/models"
	"chatmemo/internal/telemetry"
)

const (
	DefaultTemperature = 0.7
	DefaultTimeout     = 30 * time.Second
)

// LLMOptions tunes the LLM engine. Zero values fall back to defaults.
type LLMOptions struct {
	Model       string
	Temperature float64
	Timeout     time.Duration
	// RatePerMinute throttles outbound completions; zero disables throttling.
	RatePerMinute int
}

// LLMEngine asks the completion service for a reply personalized with the session memory.
type LLMEngine struct {
	completer   Completer
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
}

func NewLLMEngine(completer Completer, opts LLMOptions) *LLMEngine {
	e := &LLMEngine{
		completer:   completer,
		model:       opts.Model,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
	}
	if e.model == "" {
		e.model = config.DefaultModel
	}
	if e.temperature == 0 {
		e.temperature = DefaultTemperature
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if opts.RatePerMinute > 0 {
		e.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RatePerMinute)), opts.RatePerMinute)
	}
	return e
}

func (e *LLMEngine) Mode() string { return ModeLLM }

func (e *LLMEngine) Reply(ctx context.Context, session *models.Session, userText string) (string, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "ai.complete")
	defer span.End()
	span.SetAttributes(
		attribute.String("llm.model", e.model),
		attribute.Float64("llm.temperature", e.temperature),
	)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			span.SetStatus(codes.Error, "throttled")
			return "", fmt.Errorf("%w: throttled: %v", ErrCompletionTimeout, err)
		}
	}

	var memory map[string]string
	var prior []models.Message
	if session != nil {
		memory = session.Memory
		prior = session.Messages
	}
	history := ContextMessages(prior, userText)
	span.SetAttributes(attribute.Int("llm.history", len(history)))

	start := time.Now()
	reply, err := e.completer.Complete(ctx, SystemPrompt(memory), history, e.model, e.temperature)
	if err != nil {
		err = e.classify(ctx, err)
		status := "error"
		if errors.Is(err, ErrCompletionTimeout) {
			status = "timeout"
		}
		metrics.RecordCompletion(e.model, status, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return "", err
	}
	metrics.RecordCompletion(e.model, "ok", time.Since(start))
	return strings.TrimSpace(reply), nil
}

func (e *LLMEngine) classify(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %v", ErrCompletionTimeout, e.timeout, err)
	}
	return fmt.Errorf("%w: %v", ErrCompletion, err)
}

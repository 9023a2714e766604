// Package analytics records best-effort usage events.
package analytics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"chatmemo/internal/models"
)

// Sink stores analytics events. Callers treat failures as non-fatal.
type Sink interface {
	Record(ctx context.Context, event models.Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, models.Event) error { return nil }

// FileSink appends one JSON object per line to a file.
type FileSink struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create analytics dir: %w", err)
	}
	return &FileSink{path: path, now: time.Now}, nil
}

func (s *FileSink) Record(_ context.Context, event models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open analytics file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append event: %w", err)
	}
	return f.Close()
}

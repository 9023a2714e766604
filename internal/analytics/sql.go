package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"chatmemo/internal/models"
)

// SQLSink writes events into the analytics_events table.
type SQLSink struct {
	db     *sql.DB
	insert string
}

// NewSQLSink expects the table created by storage.Migrate for driver.
func NewSQLSink(db *sql.DB, driver string) *SQLSink {
	insert := `INSERT INTO analytics_events (type, session_id, user_id, data, ts) VALUES (?, ?, ?, ?, ?)`
	switch strings.ToLower(driver) {
	case "postgres", "postgresql":
		insert = `INSERT INTO analytics_events (type, session_id, user_id, data, ts) VALUES ($1, $2, $3, $4, $5)`
	}
	return &SQLSink{db: db, insert: insert}
}

func (s *SQLSink) Record(ctx context.Context, event models.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Data == nil {
		event.Data = map[string]any{}
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return fmt.Errorf("encode event data: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, s.insert,
		event.Type,
		nullable(event.SessionID),
		nullable(event.UserID),
		string(data),
		event.Timestamp.UTC(),
	); err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

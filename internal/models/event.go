package models

import "time"

// Analytics event types emitted by the chat pipeline.
const (
	EventUserMessage      = "user_message"
	EventAssistantMessage = "assistant_message"
)

// Event is a single analytics record.
type Event struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Data      map[string]any `json:"data"`
	Timestamp time.Time      `json:"ts"`
}

package models

import (
	"time"
	"unicode/utf8"
)

// DefaultTitle is the placeholder given to sessions created without a title.
const DefaultTitle = "Nueva conversación"

// TitleLength caps titles derived from the first message.
const TitleLength = 40

// Session is one conversation, persisted as a single JSON document.
type Session struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	UserID    string            `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []Message         `json:"messages"`
	Memory    map[string]string `json:"memory"`
}

// SessionMeta is the lightweight listing view of a session.
type SessionMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  int       `json:"messages"`
}

// Meta summarizes the session for listings.
func (s *Session) Meta() SessionMeta {
	title := s.Title
	if title == "" {
		if len(s.Messages) > 0 {
			title = Truncate(s.Messages[0].Content, TitleLength)
		} else {
			title = DefaultTitle
		}
	}
	return SessionMeta{
		ID:        s.ID,
		Title:     title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Messages:  len(s.Messages),
	}
}

// Truncate keeps at most n characters of s.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

package ai

import (
	"context"
	"fmt"
	"regexp"

	"chatmemo/internal/facts"
	"chatmemo/internal/models"
)

// EchoLength caps how much of the user text the echo reply quotes.
const EchoLength = 220

const (
	selfDescription = "Soy tu asistente. Puedo ayudarte a escribir, analizar y organizar ideas."
	closingReply    = "¡Gracias a ti! Estoy aquí cuando me necesites."
)

var (
	greetingPattern = regexp.MustCompile(`(?i)\b(hola|buenas|qué tal)\b`)
	whoPattern      = regexp.MustCompile(`(?i)\bqui[eé]n eres\b`)
	namePattern     = regexp.MustCompile(`(?i)\bmi nombre es\b|\bme llamo\b`)
	closingPattern  = regexp.MustCompile(`(?i)\b(ad[ií][oó]s|gracias)\b`)
)

// RuleEngine answers without a language model; the first matching rule wins.
type RuleEngine struct {
	extractor *facts.Extractor
}

func NewRuleEngine(extractor *facts.Extractor) *RuleEngine {
	if extractor == nil {
		extractor = facts.NewExtractor()
	}
	return &RuleEngine{extractor: extractor}
}

func (e *RuleEngine) Mode() string { return ModeFallback }

func (e *RuleEngine) Reply(ctx context.Context, session *models.Session, userText string) (string, error) {
	var memory map[string]string
	if session != nil {
		memory = session.Memory
	}
	switch {
	case greetingPattern.MatchString(userText):
		if name := memory[facts.KeyName]; name != "" {
			return fmt.Sprintf("¡Hola %s! ¿En qué puedo ayudarte hoy?", name), nil
		}
		return "¡Hola! ¿En qué puedo ayudarte hoy?", nil
	case whoPattern.MatchString(userText):
		return selfDescription, nil
	case namePattern.MatchString(userText):
		if name := e.extractor.Extract(userText)[facts.KeyName]; name != "" {
			return fmt.Sprintf("¡Encantado, %s! Lo recordaré.", name), nil
		}
		return "¡Encantado! Lo recordaré.", nil
	case closingPattern.MatchString(userText):
		return closingReply, nil
	default:
		return fmt.Sprintf("Entiendo. Me dices: “%s”. ¿Podrías contarme un poco más?", models.Truncate(userText, EchoLength)), nil
	}
}

package ai

import (
	"fmt"
	"strings"

	"chatmemo/internal/facts"
	"chatmemo/internal/models"
)

// HistoryWindow is how many prior messages are sent with each completion.
const HistoryWindow = 12

const persona = "Eres un asistente útil y amable. Responde en español. " +
	"Si el usuario te ha dicho su nombre/ubicación/gustos antes, utilízalos para personalizar."

const noFactsSentence = "Aún no sabes datos del usuario."

var factSentences = []struct {
	key    string
	format string
}{
	{facts.KeyName, "Se llama %s."},
	{facts.KeyLocation, "Vive en %s."},
	{facts.KeyJob, "Trabaja en %s."},
	{facts.KeyFavColor, "Su color favorito es %s."},
	{facts.KeyLikes, "Le gusta %s."},
}

// MemorySummary renders the known facts as sentences in a fixed key order.
func MemorySummary(memory map[string]string) string {
	parts := make([]string, 0, len(factSentences))
	for _, fs := range factSentences {
		if v := memory[fs.key]; v != "" {
			parts = append(parts, fmt.Sprintf(fs.format, v))
		}
	}
	if len(parts) == 0 {
		return noFactsSentence
	}
	return strings.Join(parts, " ")
}

// SystemPrompt is the persona instruction followed by the memory summary.
func SystemPrompt(memory map[string]string) string {
	return persona + "\n" + MemorySummary(memory)
}

// ContextMessages returns the last HistoryWindow prior messages plus the new user message.
func ContextMessages(prior []models.Message, userText string) []models.Message {
	start := 0
	if len(prior) > HistoryWindow {
		start = len(prior) - HistoryWindow
	}
	out := make([]models.Message, 0, len(prior)-start+1)
	out = append(out, prior[start:]...)
	out = append(out, models.Message{Role: models.RoleUser, Content: userText})
	return out
}

package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatmemo/internal/config"
	"chatmemo/internal/models"
)

type fakeCompleter struct {
	reply   string
	err     error
	delay   time.Duration
	calls   int
	prompt  string
	history []models.Message
	model   string
	temp    float64
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt string, history []models.Message, model string, temperature float64) (string, error) {
	f.calls++
	f.prompt = systemPrompt
	f.history = history
	f.model = model
	f.temp = temperature
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func sessionWith(n int, memory map[string]string) *models.Session {
	s := &models.Session{ID: "abc", Memory: memory}
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		s.Messages = append(s.Messages, models.Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}
	return s
}

func TestNewEngineSelectsMode(t *testing.T) {
	assert.Equal(t, ModeFallback, NewEngine(nil, LLMOptions{}).Mode())
	assert.Equal(t, ModeLLM, NewEngine(&fakeCompleter{}, LLMOptions{}).Mode())
}

func TestLLMReplyUsesPromptWindowAndDefaults(t *testing.T) {
	completer := &fakeCompleter{reply: "  ¡Hola Ana!  \n"}
	engine := NewLLMEngine(completer, LLMOptions{})

	reply, err := engine.Reply(context.Background(), sessionWith(20, map[string]string{"name": "Ana", "location": "Madrid"}), "hola")
	require.NoError(t, err)
	assert.Equal(t, "¡Hola Ana!", reply)

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, config.DefaultModel, completer.model)
	assert.InDelta(t, 0.7, completer.temp, 1e-9)
	assert.Contains(t, completer.prompt, "Responde en español")
	assert.Contains(t, completer.prompt, "Se llama Ana. Vive en Madrid.")

	require.Len(t, completer.history, HistoryWindow+1)
	assert.Equal(t, "m8", completer.history[0].Content)
	assert.Equal(t, "m19", completer.history[HistoryWindow-1].Content)
	last := completer.history[HistoryWindow]
	assert.Equal(t, models.RoleUser, last.Role)
	assert.Equal(t, "hola", last.Content)
}

func TestLLMReplyWithoutFacts(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	_, err := NewLLMEngine(completer, LLMOptions{}).Reply(context.Background(), sessionWith(0, nil), "hola")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(completer.prompt, "Aún no sabes datos del usuario."))
	assert.Len(t, completer.history, 1)
}

func TestLLMReplyWrapsFailures(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream 500")}
	_, err := NewLLMEngine(completer, LLMOptions{}).Reply(context.Background(), sessionWith(2, nil), "hola")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletion)
	assert.NotErrorIs(t, err, ErrCompletionTimeout)
}

func TestLLMReplyTimesOut(t *testing.T) {
	completer := &fakeCompleter{reply: "tarde", delay: time.Second}
	engine := NewLLMEngine(completer, LLMOptions{Timeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := engine.Reply(context.Background(), sessionWith(0, nil), "hola")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCompletionTimeout)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, 1, completer.calls)
}

func TestLLMReplyThrottles(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	engine := NewLLMEngine(completer, LLMOptions{RatePerMinute: 1, Timeout: 30 * time.Millisecond})

	_, err := engine.Reply(context.Background(), sessionWith(0, nil), "uno")
	require.NoError(t, err)
	_, err = engine.Reply(context.Background(), sessionWith(0, nil), "dos")
	assert.ErrorIs(t, err, ErrCompletionTimeout)
	assert.Equal(t, 1, completer.calls)
}

func TestRuleEngine(t *testing.T) {
	engine := NewRuleEngine(nil)
	long := strings.Repeat("ñ", 300)
	cases := []struct {
		name   string
		memory map[string]string
		text   string
		want   string
	}{
		{"greeting with name", map[string]string{"name": "Ana"}, "Hola, ¿cómo estás?", "¡Hola Ana! ¿En qué puedo ayudarte hoy?"},
		{"greeting without name", nil, "buenas tardes", "¡Hola! ¿En qué puedo ayudarte hoy?"},
		{"who", nil, "¿Quién eres?", "Soy tu asistente. Puedo ayudarte a escribir, analizar y organizar ideas."},
		{"who without accent", nil, "quien eres tu", "Soy tu asistente. Puedo ayudarte a escribir, analizar y organizar ideas."},
		{"introduction", nil, "me llamo Ana", "¡Encantado, Ana! Lo recordaré."},
		{"introduction without capture", nil, "mi nombre es 7", "¡Encantado! Lo recordaré."},
		{"closing", nil, "Muchas gracias", "¡Gracias a ti! Estoy aquí cuando me necesites."},
		{"goodbye", nil, "adiós", "¡Gracias a ti! Estoy aquí cuando me necesites."},
		{"echo", nil, "el cielo es azul", "Entiendo. Me dices: “el cielo es azul”. ¿Podrías contarme un poco más?"},
		{"echo truncates runes", nil, long, "Entiendo. Me dices: “" + strings.Repeat("ñ", EchoLength) + "”. ¿Podrías contarme un poco más?"},
		{"greeting wins over name", nil, "hola, me llamo Ana", "¡Hola! ¿En qué puedo ayudarte hoy?"},
		{"greeting wins over goodbye", nil, "hola, adiós", "¡Hola! ¿En qué puedo ayudarte hoy?"},
		{"who uppercase accent", nil, "QUIÉN ERES", "Soy tu asistente. Puedo ayudarte a escribir, analizar y organizar ideas."},
		{"goodbye without accent", nil, "adios", "¡Gracias a ti! Estoy aquí cuando me necesites."},
		{"goodbye capitalized", nil, "Bueno, Adiós.", "¡Gracias a ti! Estoy aquí cuando me necesites."},
		{"word boundary is ascii", nil, "ñhola", "¡Hola! ¿En qué puedo ayudarte hoy?"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := engine.Reply(context.Background(), &models.Session{Memory: tc.memory}, tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMemorySummaryOrder(t *testing.T) {
	got := MemorySummary(map[string]string{
		"likes":     "el jazz",
		"fav_color": "azul",
		"job":       "Acme",
		"name":      "Ana",
		"unknown":   "x",
	})
	assert.Equal(t, "Se llama Ana. Trabaja en Acme. Su color favorito es azul. Le gusta el jazz.", got)
}

func TestConvertMessages(t *testing.T) {
	msgs := convertMessages("sys", []models.Message{
		{Role: models.RoleUser, Content: "hola"},
		{Role: models.RoleAssistant, Content: "¡Hola!"},
	})
	require.Len(t, msgs, 3)
	assert.Equal(t, "sys", msgs[0].Content)
	assert.Equal(t, "system", string(msgs[0].Role))
	assert.Equal(t, "user", string(msgs[1].Role))
	assert.Equal(t, "assistant", string(msgs[2].Role))
}

func TestEngineFromConfigWithoutKeyFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.Default()
	engine := NewEngineFromConfig(context.Background(), cfg)
	assert.Equal(t, ModeFallback, engine.Mode())

	_, err := NewChatModel(context.Background(), "openai", config.ProviderConfig{})
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestNewChatModelRejectsUnknownProvider(t *testing.T) {
	_, err := NewChatModel(context.Background(), "nope", config.ProviderConfig{APIKey: "k"})
	assert.Error(t, err)
}

func TestResolveModel(t *testing.T) {
	got, err := ResolveModel("openai", config.ProviderConfig{})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModel, got)

	got, err = ResolveModel("claude", config.ProviderConfig{Model: "claude-3-5-haiku-latest"})
	require.NoError(t, err)
	assert.Equal(t, "claude-3-5-haiku-latest", got)

	for _, provider := range []string{"claude", "gemini"} {
		_, err := ResolveModel(provider, config.ProviderConfig{APIKey: "k"})
		assert.ErrorIs(t, err, ErrNoModel, provider)
	}
}

func TestEngineFromConfigWithoutModelFallsBack(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	for _, provider := range []string{"claude", "gemini"} {
		cfg := config.Default()
		cfg.ActiveProvider = provider
		cfg.Providers[provider] = config.ProviderConfig{APIKey: "k"}

		_, err := NewChatModel(context.Background(), provider, cfg.Providers[provider])
		assert.ErrorIs(t, err, ErrNoModel)
		assert.Equal(t, ModeFallback, NewEngineFromConfig(context.Background(), cfg).Mode(), provider)
	}
}

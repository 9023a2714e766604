package ai

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"chatmemo/internal/config"
	"chatmemo/internal/models"
)

var (
	// ErrNoAPIKey means the active provider has no credentials; callers fall back to rules.
	ErrNoAPIKey = errors.New("provider api key not configured")
	// ErrNoModel means a provider other than openai was configured without a model.
	ErrNoModel = errors.New("provider model not configured")
)

// ResolveModel returns the model to request from provider. Only openai has a default.
func ResolveModel(provider string, prov config.ProviderConfig) (string, error) {
	if prov.Model != "" {
		return prov.Model, nil
	}
	if provider == config.DefaultProvider {
		return config.DefaultModel, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNoModel, provider)
}

// NewChatModel builds the eino chat model for a provider.
func NewChatModel(ctx context.Context, provider string, prov config.ProviderConfig) (model.ToolCallingChatModel, error) {
	if prov.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	modelName, err := ResolveModel(provider, prov)
	if err != nil {
		return nil, err
	}

	switch provider {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: prov.BaseURL,
			Model:   modelName,
			APIKey:  prov.APIKey,
		})
	case "gemini":
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: prov.APIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case "claude":
		var baseURLPtr *string
		if prov.BaseURL != "" {
			baseURLPtr = &prov.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    prov.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", provider)
	}
}

// EinoCompleter implements Completer over an eino chat model, optionally
// routed through a ReAct agent when tools are configured.
type EinoCompleter struct {
	chatModel model.ToolCallingChatModel
	agent     *react.Agent
}

// NewEinoCompleter wires tools into a ReAct agent when any are given.
func NewEinoCompleter(ctx context.Context, chatModel model.ToolCallingChatModel, tools []tool.BaseTool) (*EinoCompleter, error) {
	c := &EinoCompleter{chatModel: chatModel}
	if len(tools) > 0 {
		reactAgent, err := react.NewAgent(ctx, &react.AgentConfig{
			ToolCallingModel: chatModel,
			ToolsConfig: compose.ToolsNodeConfig{
				Tools: tools,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("init react agent: %w", err)
		}
		c.agent = reactAgent
	}
	return c, nil
}

func (c *EinoCompleter) Complete(ctx context.Context, systemPrompt string, history []models.Message, modelName string, temperature float64) (string, error) {
	input := convertMessages(systemPrompt, history)
	opts := []model.Option{
		model.WithModel(modelName),
		model.WithTemperature(float32(temperature)),
	}

	var (
		out *schema.Message
		err error
	)
	if c.agent != nil {
		out, err = c.agent.Generate(ctx, input, agent.WithComposeOptions(compose.WithChatModelOption(opts...)))
	} else {
		out, err = c.chatModel.Generate(ctx, input, opts...)
	}
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", errors.New("empty completion")
	}
	return out.Content, nil
}

func convertMessages(systemPrompt string, history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	if systemPrompt != "" {
		messages = append(messages, schema.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}
		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}

// NewEngineFromConfig selects the reply engine from the active provider.
// Missing credentials or a provider that fails to initialize select the rule engine.
func NewEngineFromConfig(ctx context.Context, cfg *config.Config) ReplyEngine {
	name, prov := cfg.Provider()
	chatModel, err := NewChatModel(ctx, name, prov)
	if err != nil {
		if !errors.Is(err, ErrNoAPIKey) {
			log.Printf("chat model %s unavailable, using rule-based replies: %v", name, err)
		}
		return NewRuleEngine(nil)
	}

	var tools []tool.BaseTool
	if cfg.BasicConfig.EnableWebSearch {
		if ws := NewWebSearchTool(ctx, SearchOptionsFromEnv()); ws != nil {
			tools = append(tools, ws)
		}
	}
	completer, err := NewEinoCompleter(ctx, chatModel, tools)
	if err != nil {
		log.Printf("completion agent unavailable, using rule-based replies: %v", err)
		return NewRuleEngine(nil)
	}
	modelName, _ := ResolveModel(name, prov)
	log.Printf("reply engine: %s model %s", name, modelName)
	return NewEngine(completer, LLMOptions{
		Model:         modelName,
		Timeout:       cfg.LLMTimeout(),
		RatePerMinute: cfg.BasicConfig.LLMRatePerMin,
	})
}

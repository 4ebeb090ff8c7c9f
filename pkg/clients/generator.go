package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/socrates/pkg/config"
	"github.com/mikeboe/socrates/pkg/research"
)

// DefaultTemperature is used when no temperature is configured.
const DefaultTemperature = 0.3

// ErrEmptyResponse is returned when a backend answers without any choices.
var ErrEmptyResponse = errors.New("model returned no choices")

// Generator adapts a langchaingo model to research.TextGenerator.
type Generator struct {
	Model       llms.Model
	Temperature float64
	// Provider names the backend in error messages.
	Provider string
}

func NewGenerator(model llms.Model, provider string, temperature float64) *Generator {
	return &Generator{Model: model, Provider: provider, Temperature: temperature}
}

func (g *Generator) Generate(ctx context.Context, messages []research.Message, maxTokens int) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		role := llms.ChatMessageTypeHuman
		if m.Role == research.RoleSystem {
			role = llms.ChatMessageTypeSystem
		}
		content = append(content, llms.TextParts(role, m.Content))
	}

	resp, err := g.Model.GenerateContent(ctx, content,
		llms.WithMaxTokens(maxTokens),
		llms.WithTemperature(g.Temperature),
	)
	if err != nil {
		return "", fmt.Errorf("%s api failed: %w", g.Provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", g.Provider, ErrEmptyResponse)
	}
	return strings.TrimSpace(resp.Choices[0].Content), nil
}

// New builds the generator selected by cfg.LLMProvider.
func New(ctx context.Context, cfg *config.Config) (*Generator, error) {
	temperature := cfg.LLMTemperature
	if temperature < 0 {
		temperature = DefaultTemperature
	}

	var (
		model llms.Model
		err   error
	)
	switch cfg.LLMProvider {
	case config.ProviderGroq, "":
		model, err = Groq(cfg.GroqApiKey, cfg.LLMModel)
	case config.ProviderOpenAI:
		model, err = OpenAI(cfg.OpenAIApiKey, cfg.LLMModel, cfg.OpenAIBaseURL)
	case config.ProviderGoogle:
		model, err = GoogleAi(ctx, cfg.GoogleApiKey, ModelType(cfg.LLMModel))
	case config.ProviderAnthropic:
		model, err = AnthropicAI(cfg.AnthropicApiKey, cfg.LLMModel)
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.LLMProvider
	if provider == "" {
		provider = config.ProviderGroq
	}
	return NewGenerator(model, provider, temperature), nil
}

package clients

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/mikeboe/socrates/pkg/config"
	"github.com/mikeboe/socrates/pkg/research"
)

type stubModel struct {
	resp     *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	opts     llms.CallOptions
}

func (s *stubModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	s.messages = messages
	for _, opt := range options {
		opt(&s.opts)
	}
	return s.resp, s.err
}

func (s *stubModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, s, prompt, options...)
}

func TestGeneratorGenerate(t *testing.T) {
	model := &stubModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "  [\"a\", \"b\"]\n"}},
	}}
	g := NewGenerator(model, "groq", 0.3)

	got, err := g.Generate(context.Background(), []research.Message{
		{Role: research.RoleSystem, Content: "be brief"},
		{Role: research.RoleUser, Content: "what causes tides?"},
	}, 512)
	require.NoError(t, err)
	assert.Equal(t, `["a", "b"]`, got)

	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.TextContent{Text: "what causes tides?"}, model.messages[1].Parts[0])

	assert.Equal(t, 512, model.opts.MaxTokens)
	assert.Equal(t, 0.3, model.opts.Temperature)
}

func TestGeneratorErrors(t *testing.T) {
	t.Run("Backend failure", func(t *testing.T) {
		backendErr := errors.New("status 500")
		g := NewGenerator(&stubModel{err: backendErr}, "groq", 0.3)

		_, err := g.Generate(context.Background(), nil, 10)
		require.ErrorIs(t, err, backendErr)
		assert.Contains(t, err.Error(), "groq api failed")
	})

	t.Run("No choices", func(t *testing.T) {
		g := NewGenerator(&stubModel{resp: &llms.ContentResponse{}}, "openai", 0.3)

		got, err := g.Generate(context.Background(), nil, 10)
		assert.ErrorIs(t, err, ErrEmptyResponse)
		assert.Empty(t, got)
	})
}

func TestNew(t *testing.T) {
	t.Run("Groq default", func(t *testing.T) {
		g, err := New(context.Background(), &config.Config{GroqApiKey: "gsk-test", LLMTemperature: 0.5})
		require.NoError(t, err)
		assert.Equal(t, config.ProviderGroq, g.Provider)
		assert.Equal(t, 0.5, g.Temperature)
	})

	t.Run("Anthropic", func(t *testing.T) {
		g, err := New(context.Background(), &config.Config{LLMProvider: config.ProviderAnthropic, AnthropicApiKey: "sk-ant"})
		require.NoError(t, err)
		assert.Equal(t, config.ProviderAnthropic, g.Provider)
	})

	t.Run("Missing key", func(t *testing.T) {
		_, err := New(context.Background(), &config.Config{LLMProvider: config.ProviderOpenAI})
		assert.Error(t, err)
	})

	t.Run("Unknown provider", func(t *testing.T) {
		_, err := New(context.Background(), &config.Config{LLMProvider: "mistral"})
		assert.Error(t, err)
	})
}

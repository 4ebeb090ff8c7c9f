package clients

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"
)

const (
	GroqBaseURL      = "https://api.groq.com/openai/v1"
	GroqDefaultModel = "llama-3.3-70b-versatile"

	OpenAIDefaultModel = "gpt-4o-mini"
)

// Groq talks to Groq's OpenAI-compatible chat completions endpoint.
func Groq(apiKey, model string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("groq api key is not set")
	}
	if model == "" {
		model = GroqDefaultModel
	}
	return OpenAI(apiKey, model, GroqBaseURL)
}

// OpenAI creates a client for any OpenAI-compatible API. An empty baseURL
// targets api.openai.com.
func OpenAI(apiKey, model, baseURL string) (*openai.LLM, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is not set")
	}
	if model == "" {
		model = OpenAIDefaultModel
	}

	opts := []openai.Option{openai.WithToken(apiKey), openai.WithModel(model)}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return llm, nil
}

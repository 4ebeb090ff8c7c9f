package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	ProviderGroq      = "groq"
	ProviderOpenAI    = "openai"
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"

	SearchSearXNG = "searxng"
	SearchArxiv   = "arxiv"
	SearchTavily  = "tavily"
)

type Config struct {
	// Text generation
	LLMProvider     string
	LLMModel        string
	LLMTemperature  float64
	GroqApiKey      string
	OpenAIApiKey    string
	OpenAIBaseURL   string
	GoogleApiKey    string
	AnthropicApiKey string

	// Web search
	SearchProvider  string
	SearXNGBaseURL  string
	TavilyApiKey    string
	SearchRateLimit float64

	// Research loop
	MaxIterations         int
	MaxSourcesPerQuestion int

	// Storage and the history index
	DatabaseURL    string
	Port           string
	EmbeddingModel string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
}

func Load() *Config {
	return &Config{
		LLMProvider:     strings.ToLower(getEnv("LLM_PROVIDER", ProviderGroq)),
		LLMModel:        getEnv("LLM_MODEL", ""),
		LLMTemperature:  getEnvAsFloat("LLM_TEMPERATURE", 0.3),
		GroqApiKey:      getEnv("GROQ_API_KEY", ""),
		OpenAIApiKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		GoogleApiKey:    getEnv("GOOGLE_API_KEY", ""),
		AnthropicApiKey: getEnv("ANTHROPIC_API_KEY", ""),

		SearchProvider:  strings.ToLower(getEnv("SEARCH_PROVIDER", SearchSearXNG)),
		SearXNGBaseURL:  getEnv("SEARXNG_BASE_URL", "http://localhost:8080"),
		TavilyApiKey:    getEnv("TAVILY_API_KEY", ""),
		SearchRateLimit: getEnvAsFloat("SEARCH_RATE_LIMIT", 0),

		MaxIterations:         getEnvAsInt("MAX_ITERATIONS", 3),
		MaxSourcesPerQuestion: getEnvAsInt("MAX_SOURCES_PER_QUESTION", 5),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		Port:           getEnv("PORT", "3000"),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
		CollectionName: getEnv("COLLECTION_NAME", "research_history"),
		ChunkSize:      getEnvAsInt("CHUNK_SIZE", 1000),
		ChunkOverlap:   getEnvAsInt("CHUNK_OVERLAP", 200),
	}
}

// Validate reports the first setting that cannot produce a working engine.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGroq:
		if c.GroqApiKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderOpenAI:
		if c.OpenAIApiKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderGoogle:
		if c.GoogleApiKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for provider %q", c.LLMProvider)
		}
	case ProviderAnthropic:
		if c.AnthropicApiKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.LLMProvider)
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.SearchProvider {
	case SearchSearXNG:
		if c.SearXNGBaseURL == "" {
			return fmt.Errorf("SEARXNG_BASE_URL is required for search provider %q", c.SearchProvider)
		}
	case SearchArxiv:
	case SearchTavily:
		if c.TavilyApiKey == "" {
			return fmt.Errorf("TAVILY_API_KEY is required for search provider %q", c.SearchProvider)
		}
	default:
		return fmt.Errorf("unknown SEARCH_PROVIDER %q", c.SearchProvider)
	}

	if c.MaxIterations <= 0 {
		return fmt.Errorf("MAX_ITERATIONS must be positive, got %d", c.MaxIterations)
	}
	if c.MaxSourcesPerQuestion <= 0 {
		return fmt.Errorf("MAX_SOURCES_PER_QUESTION must be positive, got %d", c.MaxSourcesPerQuestion)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// HistoryEnabled reports whether the history index can embed documents.
func (c *Config) HistoryEnabled() bool {
	return c.GoogleApiKey != "" && c.DatabaseURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

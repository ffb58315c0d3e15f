package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const DefaultQwenEndpointURL = "https://qe1ht18838pdue80.us-east-1.aws.endpoints.huggingface.cloud"

type Config struct {
	// Server
	Port string
	Env  string

	// Logging
	LogLevel  string
	LogFormat string

	// Frontend origin allowed by CORS
	FrontendURL string

	// OpenAI
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	// Anthropic
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string

	// Inference endpoints
	HuggingFaceToken      string
	QwenEndpointURL       string
	MixtralEndpointURL    string
	InferenceMaxNewTokens int

	// Gemini
	GoogleAPIKey string
	GeminiModel  string

	// Chat
	ProviderTimeoutSeconds int
	HistoryMaxTurns        int

	// Redis (optional, enables exchange events)
	RedisURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                   getEnvOrDefault("PORT", "5000"),
		Env:                    getEnvOrDefault("ENV", "development"),
		LogLevel:               getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:              getEnvOrDefault("LOG_FORMAT", "text"),
		FrontendURL:            getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
		OpenAIAPIKey:           getEnvOrDefault("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnvOrDefault("OPENAI_BASE_URL", ""),
		OpenAIModel:            getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey:        getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:       getEnvOrDefault("ANTHROPIC_BASE_URL", ""),
		AnthropicModel:         getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-haiku-20240307"),
		HuggingFaceToken:       getEnvOrDefault("HUGGINGFACE_TOKEN", ""),
		QwenEndpointURL:        getEnvOrDefault("QWEN_ENDPOINT_URL", DefaultQwenEndpointURL),
		MixtralEndpointURL:     getEnvOrDefault("MIXTRAL_ENDPOINT_URL", ""),
		InferenceMaxNewTokens:  getEnvAsIntOrDefault("INFERENCE_MAX_NEW_TOKENS", 200),
		GoogleAPIKey:           getEnvOrDefault("GOOGLE_API_KEY", ""),
		GeminiModel:            getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		ProviderTimeoutSeconds: getEnvAsIntOrDefault("PROVIDER_TIMEOUT_SECONDS", 60),
		HistoryMaxTurns:        getEnvAsIntOrDefault("HISTORY_MAX_TURNS", 0),
		RedisURL:               getEnvOrDefault("REDIS_URL", ""),
	}

	return cfg
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT must not be empty")
	}
	if c.FrontendURL == "" {
		return fmt.Errorf("FRONTEND_URL must not be empty")
	}
	if c.ProviderTimeoutSeconds < 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT_SECONDS must not be negative, got %d", c.ProviderTimeoutSeconds)
	}
	if c.HistoryMaxTurns < 0 {
		return fmt.Errorf("HISTORY_MAX_TURNS must not be negative, got %d", c.HistoryMaxTurns)
	}
	if c.InferenceMaxNewTokens <= 0 {
		return fmt.Errorf("INFERENCE_MAX_NEW_TOKENS must be positive, got %d", c.InferenceMaxNewTokens)
	}
	return nil
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

// Credentials reports which provider credentials are set, keyed by env var.
func (c *Config) Credentials() map[string]bool {
	return map[string]bool{
		"OPENAI_API_KEY":    c.OpenAIAPIKey != "",
		"ANTHROPIC_API_KEY": c.AnthropicAPIKey != "",
		"HUGGINGFACE_TOKEN": c.HuggingFaceToken != "",
		"GOOGLE_API_KEY":    c.GoogleAPIKey != "",
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

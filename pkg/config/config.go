// Package config loads the service's environment-driven configuration,
// following the same getenv-with-defaults idiom the rest of the
// teacher's services use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the fully resolved, validated process configuration.
type Config struct {
	Port        int
	DatabaseURL string
	OpenAIAPIKey string
	TavilyAPIKey string
	Production  bool

	RateLimit RateLimitConfig
	CacheTTL  CacheTTLConfig
	LLM       LLMConfig
}

// RateLimitConfig holds the admission-layer limits from spec §4.1.
type RateLimitConfig struct {
	ResearchPerMinute int
	HistoryPerMinute  int
}

// CacheTTLConfig holds the per-mode cache lifetimes from spec §4.4.
type CacheTTLConfig struct {
	Quick    time.Duration
	Standard time.Duration
	Deep     time.Duration
	Sweep    time.Duration
}

// LLMConfig holds per-mode timeouts and model identifiers from spec §4.5.
type LLMConfig struct {
	EconomyModel      string
	HighCapabilityModel string
	QuickTimeout      time.Duration
	StandardTimeout   time.Duration
	DeepTimeout       time.Duration
	MaxAttempts       int
}

// Load reads configuration from the environment, applying the defaults
// documented in spec.md §6. It does not require OPENAI_API_KEY or
// TAVILY_API_KEY to be set — their absence only degrades the adapters
// that need them, per spec.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "3001"))
	if err != nil {
		return nil, fmt.Errorf("invalid PORT: %w", err)
	}

	cfg := &Config{
		Port:         port,
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
		TavilyAPIKey: os.Getenv("TAVILY_API_KEY"),
		Production:   isProduction(),
		RateLimit: RateLimitConfig{
			ResearchPerMinute: 20,
			HistoryPerMinute:  60,
		},
		CacheTTL: CacheTTLConfig{
			Quick:    15 * time.Minute,
			Standard: 20 * time.Minute,
			Deep:     30 * time.Minute,
			Sweep:    5 * time.Minute,
		},
		LLM: LLMConfig{
			EconomyModel:        getEnv("LLM_ECONOMY_MODEL", "gpt-4o-mini"),
			HighCapabilityModel: getEnv("LLM_DEEP_MODEL", "gpt-4o"),
			QuickTimeout:        30 * time.Second,
			StandardTimeout:     45 * time.Second,
			DeepTimeout:         60 * time.Second,
			MaxAttempts:         3,
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func isProduction() bool {
	switch getEnv("NODE_ENV", "development") {
	case "production", "prod":
		return true
	default:
		return false
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

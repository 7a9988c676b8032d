// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir       string // Base directory for all databases (always absolute)
	ScoringDir    string // Directory holding scoring factor/profile YAML files
	LogLevel      string
	Port          int
	DevMode       bool
	CORSOrigins   []string
	FMPAPIKey     string
	GeminiAPIKey  string
	OpenAIAPIKey  string
	OpenAIBaseURL string // OpenAI-compatible endpoint, overridable for proxies
	LLMProvider   string // Startup default: "gemini" or "openai"
	LLMModel      string // Optional model override for the active provider

	// Embedding settings for transcript search
	EmbeddingModel     string
	EmbeddingDimension int
	ChunkSize          int
	ChunkOverlap       int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("VERASCORE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	scoringDir := getEnv("VERASCORE_SCORING_DIR", "./configs/scoring")
	absScoringDir, err := filepath.Abs(scoringDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scoring config directory: %w", err)
	}

	cfg := &Config{
		DataDir:            absDataDir,
		ScoringDir:         absScoringDir,
		Port:               getEnvAsInt("PORT", 8000),
		DevMode:            getEnvAsBool("DEV_MODE", false),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSOrigins:        []string{getEnv("CORS_ORIGIN", "http://localhost:5173")},
		FMPAPIKey:          getEnv("FMP_API_KEY", ""),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:       getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:      getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		LLMProvider:        getEnv("LLM_PROVIDER", "gemini"),
		LLMModel:           getEnv("LLM_MODEL", ""),
		EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-004"),
		EmbeddingDimension: getEnvAsInt("EMBEDDING_DIMENSION", 768),
		ChunkSize:          getEnvAsInt("CHUNK_SIZE", 512),
		ChunkOverlap:       getEnvAsInt("CHUNK_OVERLAP", 50),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("CHUNK_OVERLAP (%d) must be smaller than CHUNK_SIZE (%d)", c.ChunkOverlap, c.ChunkSize)
	}

	// Note: API keys are optional for research mode; features that need a
	// missing key fail at the point of use instead of at startup.
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cbottock-ai/VeraScore/internal/config"
)

// Default models per provider when no override is configured.
const (
	DefaultGeminiModel = "gemini-2.0-flash"
	DefaultOpenAIModel = "gpt-4o"
)

// ProviderInfo reports the active provider selection.
type ProviderInfo struct {
	Provider           string   `json:"provider"`
	Model              string   `json:"model"`
	AvailableProviders []string `json:"available_providers"`
}

// Registry resolves the active chat provider. The startup default comes
// from config; SetProvider switches it at runtime.
type Registry struct {
	cfg *config.Config
	log zerolog.Logger

	mu       sync.RWMutex
	provider string
	model    string
}

// NewRegistry creates a provider registry seeded from config.
func NewRegistry(cfg *config.Config, log zerolog.Logger) *Registry {
	return &Registry{cfg: cfg, log: log}
}

// SetProvider switches the active provider and optional model override.
func (r *Registry) SetProvider(provider, model string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = provider
	r.model = model
}

// Info returns the active selection and the providers with configured keys.
func (r *Registry) Info() ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider := r.provider
	if provider == "" {
		provider = r.cfg.LLMProvider
	}

	model := r.model
	if model == "" {
		model = r.cfg.LLMModel
	}
	if model == "" {
		if provider == "openai" {
			model = DefaultOpenAIModel
		} else {
			model = DefaultGeminiModel
		}
	}

	available := []string{}
	if r.cfg.GeminiAPIKey != "" {
		available = append(available, "gemini")
	}
	if r.cfg.OpenAIAPIKey != "" {
		available = append(available, "openai")
	}
	return ProviderInfo{Provider: provider, Model: model, AvailableProviders: available}
}

// Provider builds the active provider, or an error when its API key is
// not configured.
func (r *Registry) Provider(ctx context.Context) (Provider, error) {
	info := r.Info()
	if info.Provider == "openai" {
		if r.cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not configured")
		}
		return NewOpenAI(r.cfg.OpenAIBaseURL, r.cfg.OpenAIAPIKey, info.Model, r.log), nil
	}
	if r.cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("Gemini API key not configured")
	}
	return NewGemini(ctx, r.cfg.GeminiAPIKey, info.Model, r.log)
}

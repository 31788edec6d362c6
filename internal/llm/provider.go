// Package llm implements the optional LLM-assisted sub-extraction used
// for unstructured text blocks. Its output is opaque observations only,
// subject to the same extraction boundary as hand-written extractors,
// and the deterministic pipeline never depends on it.
package llm

import (
	"context"

	"github.com/lenscan/lenscan/internal/model"
)

// Provider is one LLM backend capable of turning free text into
// key-value observations.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// ExtractObservations returns flat string observations found in the
	// text. Keys are provider-chosen; the caller namespaces them.
	ExtractObservations(ctx context.Context, text string) (map[string]string, error)

	// IsAvailable checks that the provider is configured and reachable.
	IsAvailable(ctx context.Context) bool
}

// Config holds provider configuration.
type Config struct {
	// Provider name: "openai", "ollama", or "" (disabled).
	Provider string
	Model    string
	APIKey   string
	// BaseURL overrides the endpoint, used for OpenAI-compatible servers.
	BaseURL string
	// Timeout in seconds per request.
	Timeout   int
	MaxTokens int
}

// DefaultConfig returns the disabled-by-default configuration.
func DefaultConfig() Config {
	return Config{Timeout: 30, MaxTokens: 1000}
}

// ConfigFromModel converts the runtime configuration section.
func ConfigFromModel(mc model.LLMConfig) Config {
	return Config{
		Provider:  mc.Provider,
		Model:     mc.Model,
		APIKey:    mc.APIKey,
		BaseURL:   mc.BaseURL,
		Timeout:   mc.Timeout,
		MaxTokens: mc.MaxTokens,
	}
}

package llm

import (
	"context"
	"fmt"
	"strings"
)

// NewProvider creates a provider from configuration. An empty provider
// name returns (nil, nil): sub-extraction disabled.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai", "ollama":
		return NewOpenAIProvider(config)
	case "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, ollama)", config.Provider)
	}
}

// SubExtractor adapts a Provider to the extraction boundary's
// TextObserver hook.
type SubExtractor struct {
	provider Provider
}

// NewSubExtractor wraps a provider; returns nil for a nil provider so
// callers can pass the result straight through.
func NewSubExtractor(provider Provider) *SubExtractor {
	if provider == nil {
		return nil
	}
	return &SubExtractor{provider: provider}
}

// Observe implements extract.TextObserver.
func (s *SubExtractor) Observe(ctx context.Context, text string) (map[string]string, error) {
	return s.provider.ExtractObservations(ctx, text)
}

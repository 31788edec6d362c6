package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const observationPrompt = `Extract factual key/value observations from the text below.
Respond with a single flat JSON object mapping snake_case keys to short string values.
Only include facts literally present in the text. Do not classify, categorise or interpret.
Text:
`

// OpenAIProvider extracts observations through the Chat Completions API.
// With a BaseURL it also serves OpenAI-compatible local servers (Ollama).
type OpenAIProvider struct {
	client *openai.Client
	config Config
	name   string
}

// NewOpenAIProvider creates a provider from configuration.
func NewOpenAIProvider(config Config) (*OpenAIProvider, error) {
	if config.APIKey == "" && config.BaseURL == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	name := "openai"
	if config.Provider != "" {
		name = config.Provider
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
		name:   name,
	}, nil
}

// Name implements Provider.
func (p *OpenAIProvider) Name() string { return p.name }

// IsAvailable implements Provider with a lightweight model listing call.
func (p *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	_, err := p.client.ListModels(ctx)
	return err == nil
}

// ExtractObservations implements Provider.
func (p *OpenAIProvider) ExtractObservations(ctx context.Context, text string) (map[string]string, error) {
	model := p.config.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	maxTokens := p.config.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}
	timeout := time.Duration(p.config.Timeout) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You extract literal observations from text. You never invent facts.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: observationPrompt + text,
			},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: empty response")
	}

	return parseObservations(resp.Choices[0].Message.Content)
}

// parseObservations pulls the first JSON object out of a completion and
// flattens it into string observations.
func parseObservations(content string) (map[string]string, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(content[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	obs := make(map[string]string, len(raw))
	for k, v := range raw {
		switch val := v.(type) {
		case string:
			obs[k] = val
		case float64, bool:
			obs[k] = fmt.Sprint(val)
		}
	}
	return obs, nil
}

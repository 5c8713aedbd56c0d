// Package generic implements the OpenAI-compatible chat-completions adapter
// used for plain HTTP agents and custom endpoints.
package generic

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

// Type is the adapter type identifier used in configuration.
const Type = config.TypeGeneric

const systemPrompt = "You are a helpful and explainable AI assistant."

// Register wires the generic factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        Type,
		Description: "OpenAI-compatible chat-completions API",
		New: func(cfg *config.AgentConfig) (adapter.Adapter, error) {
			return New(cfg), nil
		},
		Validate: func(cfg *config.AgentConfig) error {
			if cfg.BaseURL == "" {
				return domain.ErrConfig("agent %s: base_url is required for generic adapters", cfg.Name)
			}
			return nil
		},
	})
}

// Generic is the adapter instance; safe for concurrent use.
type Generic struct {
	name   string
	model  string
	client *openai.Client
}

// New creates a generic adapter from resolved configuration. Local
// OpenAI-compatible servers often ignore the key, so a missing api_key is
// replaced with a placeholder rather than rejected.
func New(cfg *config.AgentConfig) *Generic {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "not-needed"
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(apiKey)
	clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout()}

	return &Generic{
		name:   cfg.Name,
		model:  model,
		client: openai.NewClientWithConfig(clientCfg),
	}
}

func (g *Generic) Name() string { return g.name }
func (g *Generic) Type() string { return Type }

// Invoke sends the prompt as a single chat turn.
func (g *Generic) Invoke(ctx context.Context, prompt string) (*adapter.Response, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, classifyOpenAIError(g.name, err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.ErrMalformedResponse("agent %s: completion returned no choices", g.name)
	}

	return &adapter.Response{
		Output: resp.Choices[0].Message.Content,
		Fields: map[string]any{
			"model":         resp.Model,
			"finish_reason": string(resp.Choices[0].FinishReason),
		},
	}, nil
}

// classifyOpenAIError maps the client library's error shapes onto the
// adapter error taxonomy.
func classifyOpenAIError(agent string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return adapter.ClassifyStatus(agent, apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return adapter.ClassifyStatus(agent, reqErr.HTTPStatusCode, reqErr.Error())
	}
	return adapter.ClassifyTransportError(agent, err)
}

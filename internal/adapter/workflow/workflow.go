// Package workflow implements the key-based workflow adapter. It posts the
// prompt to a fixed workflow endpoint with a bearer API key and extracts
// the XML-tagged analysis fields from the JSON result.
package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

// Type is the adapter type identifier used in configuration.
const Type = config.TypeWorkflow

// Register wires the workflow factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        Type,
		Description: "Key-based HTTP workflow API (Dify-style)",
		New: func(cfg *config.AgentConfig) (adapter.Adapter, error) {
			return New(cfg), nil
		},
		Validate: validateConfig,
	})
}

func validateConfig(cfg *config.AgentConfig) error {
	if cfg.APIKey == "" {
		return domain.ErrConfig("agent %s: api_key is required for workflow adapters", cfg.Name)
	}
	if cfg.BaseURL == "" {
		return domain.ErrConfig("agent %s: base_url is required for workflow adapters", cfg.Name)
	}
	return nil
}

// Option configures the workflow adapter.
type Option func(*Workflow)

// WithHTTPClient sets a custom HTTP client (tests, recorded transports).
func WithHTTPClient(c *http.Client) Option {
	return func(w *Workflow) {
		w.httpClient = c
	}
}

// Workflow is the adapter instance. One instance per agent; safe for
// concurrent use.
type Workflow struct {
	name       string
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a workflow adapter from resolved configuration.
func New(cfg *config.AgentConfig, opts ...Option) *Workflow {
	w := &Workflow{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Workflow) Name() string { return w.name }
func (w *Workflow) Type() string { return Type }

type invokeRequest struct {
	Inputs map[string]string `json:"inputs"`
	User   string            `json:"user"`
}

// Invoke posts the prompt as the workflow's "news" input and parses the
// XML-tagged result text.
func (w *Workflow) Invoke(ctx context.Context, prompt string) (*adapter.Response, error) {
	body, err := json.Marshal(invokeRequest{
		Inputs: map[string]string{"news": prompt},
		User:   "api_client",
	})
	if err != nil {
		return nil, domain.ErrMalformedResponse("agent %s: marshal request: %v", w.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent %s: build request: %w", w.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, adapter.ClassifyTransportError(w.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, adapter.ClassifyTransportError(w.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, adapter.ClassifyStatus(w.name, resp.StatusCode, string(respBody))
	}

	var payload map[string]any
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return nil, domain.ErrMalformedResponse("agent %s: response is not JSON: %v", w.name, err)
	}

	text, ok := extractResultText(payload)
	if !ok {
		return nil, domain.ErrMalformedResponse("agent %s: no result text in workflow response", w.name)
	}

	fields := parseTaggedFields(text)
	return &adapter.Response{
		Output: formatOutput(text, fields),
		Fields: fields,
	}, nil
}

// resultPaths are the known locations of the result text across workflow
// engine versions, tried in order.
var resultPaths = [][]string{
	{"data", "outputs", "text"},
	{"data", "answer"},
	{"answer"},
	{"result"},
	{"output"},
}

func extractResultText(payload map[string]any) (string, bool) {
	for _, path := range resultPaths {
		node := any(payload)
		found := true
		for _, key := range path {
			m, ok := node.(map[string]any)
			if !ok {
				found = false
				break
			}
			node, ok = m[key]
			if !ok {
				found = false
				break
			}
		}
		if !found {
			continue
		}
		if s, ok := node.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

var taggedFieldPatterns = map[string]*regexp.Regexp{
	"classification": regexp.MustCompile(`(?s)<Classification>(\d+)</Classification>`),
	"reason":         regexp.MustCompile(`(?s)<Reason>(.*?)</Reason>`),
	"sentiment":      regexp.MustCompile(`(?s)<Sentiment>(.*?)</Sentiment>`),
	"category":       regexp.MustCompile(`(?s)<Category>(.*?)</Category>`),
	"keywords":       regexp.MustCompile(`(?s)<Keywords>(.*?)</Keywords>`),
}

func parseTaggedFields(text string) map[string]any {
	fields := make(map[string]any)
	for name, pattern := range taggedFieldPatterns {
		if m := pattern.FindStringSubmatch(text); m != nil {
			fields[name] = strings.TrimSpace(m[1])
		}
	}
	fields["raw_xml"] = text
	return fields
}

var outputLabels = []struct {
	field string
	label string
}{
	{"classification", "classification"},
	{"reason", "reason"},
	{"sentiment", "sentiment"},
	{"category", "category"},
	{"keywords", "keywords"},
}

// formatOutput renders the parsed fields as readable lines, falling back
// to the raw result text when nothing was tagged.
func formatOutput(raw string, fields map[string]any) string {
	var parts []string
	for _, l := range outputLabels {
		if v, ok := fields[l.field].(string); ok && v != "" {
			parts = append(parts, l.label+": "+v)
		}
	}
	if len(parts) == 0 {
		return raw
	}
	return strings.Join(parts, "\n")
}

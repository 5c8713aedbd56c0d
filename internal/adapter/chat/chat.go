// Package chat implements the session/credential chat adapter. It performs
// a CSRF + credentials login to obtain a session cookie, keeps the session
// for the instance's lifetime, and re-authenticates once when the upstream
// reports an expired session.
package chat

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

// Type is the adapter type identifier used in configuration.
const Type = config.TypeChat

// Register wires the chat factory into the adapter registry.
func Register() {
	adapter.RegisterFactory(adapter.Factory{
		Type:        Type,
		Description: "Session/credential-based chat API with streamed responses",
		New: func(cfg *config.AgentConfig) (adapter.Adapter, error) {
			return New(cfg)
		},
		Validate: validateConfig,
	})
}

func validateConfig(cfg *config.AgentConfig) error {
	if cfg.BaseURL == "" {
		return domain.ErrConfig("agent %s: base_url is required for chat adapters", cfg.Name)
	}
	if cfg.Email == "" || cfg.Password == "" {
		return domain.ErrConfig("agent %s: email and password are required for chat adapters", cfg.Name)
	}
	return nil
}

// sessionCookieNames covers current and legacy session cookie naming of the
// upstream auth stack.
var sessionCookieNames = []string{
	"authjs.session-token",
	"__Secure-authjs.session-token",
	"next-auth.session-token",
	"__Secure-next-auth.session-token",
}

// Chat is the adapter instance. The session cookie is owned exclusively by
// this instance; a mutex serializes login so concurrent invokes share one
// session rather than racing to create several.
type Chat struct {
	name       string
	baseURL    string
	email      string
	password   string
	model      string
	httpClient *http.Client

	mu     sync.Mutex
	authed bool
}

// New creates a chat adapter with its own cookie jar.
func New(cfg *config.AgentConfig) (*Chat, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("agent %s: cookie jar: %w", cfg.Name, err)
	}
	model := cfg.SelectedChatModel
	if model == "" {
		model = "chat-model"
	}
	return &Chat{
		name:     cfg.Name,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		email:    cfg.Email,
		password: cfg.Password,
		model:    model,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: cfg.Timeout(),
		},
	}, nil
}

func (c *Chat) Name() string { return c.name }
func (c *Chat) Type() string { return Type }

// Invoke sends the prompt as one chat turn and concatenates the streamed
// text deltas. An expiry-class failure triggers exactly one re-login.
func (c *Chat) Invoke(ctx context.Context, prompt string) (*adapter.Response, error) {
	if err := c.ensureSession(ctx, false); err != nil {
		return nil, err
	}

	out, err := c.chat(ctx, prompt)
	if err == nil {
		return out, nil
	}
	if domain.AsError(err).Kind != domain.ErrKindAuthFailure {
		return nil, err
	}

	// Session likely expired; refresh it once and retry.
	if err := c.ensureSession(ctx, true); err != nil {
		return nil, err
	}
	return c.chat(ctx, prompt)
}

func (c *Chat) ensureSession(ctx context.Context, force bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.authed && !force {
		return nil
	}

	token, err := c.fetchCSRF(ctx)
	if err != nil {
		return err
	}
	if err := c.login(ctx, token); err != nil {
		return err
	}
	c.authed = true
	return nil
}

func (c *Chat) fetchCSRF(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/auth/csrf", nil)
	if err != nil {
		return "", fmt.Errorf("agent %s: build csrf request: %w", c.name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", adapter.ClassifyTransportError(c.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", adapter.ClassifyTransportError(c.name, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", adapter.ClassifyStatus(c.name, resp.StatusCode, string(body))
	}

	var payload struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", domain.ErrMalformedResponse("agent %s: csrf endpoint did not return JSON: %v", c.name, err)
	}
	if payload.CSRFToken == "" {
		return "", domain.ErrMalformedResponse("agent %s: csrf token missing in response", c.name)
	}
	return payload.CSRFToken, nil
}

func (c *Chat) login(ctx context.Context, csrfToken string) error {
	form := url.Values{
		"csrfToken":   {csrfToken},
		"email":       {c.email},
		"password":    {c.password},
		"callbackUrl": {c.baseURL + "/"},
		"redirect":    {"false"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/auth/callback/credentials", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("agent %s: build login request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Origin", c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return adapter.ClassifyTransportError(c.name, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	// A redirect back to the login page means the credentials were
	// rejected even though the status chain ended 200.
	if strings.Contains(resp.Request.URL.Path, "/login") {
		return domain.ErrAuthFailure("agent %s: credentials rejected at login", c.name)
	}
	if resp.StatusCode != http.StatusOK {
		return adapter.ClassifyStatus(c.name, resp.StatusCode, "")
	}
	if !c.hasSessionCookie() {
		return domain.ErrAuthFailure("agent %s: login returned no session cookie", c.name)
	}
	return nil
}

func (c *Chat) hasSessionCookie() bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	for _, cookie := range c.httpClient.Jar.Cookies(base) {
		for _, name := range sessionCookieNames {
			if cookie.Name == name {
				return true
			}
		}
	}
	return false
}

type chatMessage struct {
	ID      string     `json:"id"`
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Parts   []chatPart `json:"parts"`
}

type chatPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatRequest struct {
	ID                string        `json:"id"`
	Messages          []chatMessage `json:"messages"`
	SelectedChatModel string        `json:"selectedChatModel"`
}

func (c *Chat) chat(ctx context.Context, prompt string) (*adapter.Response, error) {
	body, err := json.Marshal(chatRequest{
		ID: uuid.New().String(),
		Messages: []chatMessage{{
			ID:      uuid.New().String(),
			Role:    "user",
			Content: prompt,
			Parts:   []chatPart{{Type: "text", Text: prompt}},
		}},
		SelectedChatModel: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("agent %s: marshal chat request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("agent %s: build chat request: %w", c.name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, adapter.ClassifyTransportError(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return nil, adapter.ClassifyStatus(c.name, resp.StatusCode, string(snippet))
	}

	text, err := readDataStream(resp.Body)
	if err != nil {
		return nil, domain.ErrMalformedResponse("agent %s: reading chat stream: %v", c.name, err)
	}
	if text == "" {
		return nil, domain.ErrMalformedResponse("agent %s: chat stream carried no text", c.name)
	}

	return &adapter.Response{
		Output: text,
		Fields: map[string]any{"model": c.model},
	}, nil
}

// readDataStream concatenates text deltas from the upstream's data-stream
// protocol. Two framings are accepted: prefix-coded lines (`0:"delta"`)
// and SSE-style `data: {"type":"text-delta",...}` events.
func readDataStream(r io.Reader) (string, error) {
	var sb strings.Builder
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if payload, ok := strings.CutPrefix(line, "data: "); ok {
			if payload == "[DONE]" {
				break
			}
			var event struct {
				Type      string `json:"type"`
				Delta     string `json:"delta"`
				TextDelta string `json:"textDelta"`
			}
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}
			if event.Type == "text-delta" {
				if event.Delta != "" {
					sb.WriteString(event.Delta)
				} else {
					sb.WriteString(event.TextDelta)
				}
			}
			continue
		}

		code, payload, found := strings.Cut(line, ":")
		if !found || code != "0" {
			continue
		}
		var delta string
		if err := json.Unmarshal([]byte(payload), &delta); err != nil {
			continue
		}
		sb.WriteString(delta)
	}
	if err := scanner.Err(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

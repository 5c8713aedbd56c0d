package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/unicc-ai/testbridge/internal/domain"
)

// Adapter type identifiers.
const (
	TypeWorkflow = "workflow"
	TypeChat     = "chat"
	TypeMedia    = "media"
	TypeGeneric  = "generic"
)

// AgentConfig is the resolved configuration for one agent's adapter.
// Resolution order, highest precedence first: per-agent file, environment
// variables, built-in defaults. Immutable for the lifetime of one run.
type AgentConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`

	APIKey  string `koanf:"api_key"`
	BaseURL string `koanf:"base_url"`

	// TimeoutSeconds bounds every network call the adapter makes.
	TimeoutSeconds int `koanf:"timeout"`

	// Credential pair for session-based adapters.
	Email    string `koanf:"email"`
	Password string `koanf:"password"`

	SelectedChatModel string `koanf:"selected_chat_model"`
	ParsePDF          bool   `koanf:"parse_pdf"`

	// Model is the upstream model name for generic OpenAI-compatible
	// agents.
	Model string `koanf:"model"`
}

// Timeout returns the configured timeout as a duration, falling back to
// 30s when unset.
func (c *AgentConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// builtinAgents carries the defaults the original deployment shipped with.
// Secrets default from the environment names documented for each backend.
func builtinAgents() map[string]AgentConfig {
	apiKey := os.Getenv("APP_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("SHIXUANLIN_API_KEY")
	}
	return map[string]AgentConfig{
		"shixuanlin": {
			Name:           "shixuanlin",
			Type:           TypeWorkflow,
			APIKey:         apiKey,
			BaseURL:        "https://api.dify.ai/v1/workflows/run",
			TimeoutSeconds: 30,
		},
		"hatespeech": {
			Name:              "hatespeech",
			Type:              TypeChat,
			BaseURL:           "http://localhost:3000",
			Email:             os.Getenv("AGENT_EMAIL"),
			Password:          os.Getenv("AGENT_PASSWORD"),
			SelectedChatModel: "chat-model",
			TimeoutSeconds:    120,
		},
		"verimedia": {
			Name:           "verimedia",
			Type:           TypeMedia,
			BaseURL:        "http://127.0.0.1:5004",
			TimeoutSeconds: 180,
			ParsePDF:       true,
		},
		"http": {
			Name:           "http",
			Type:           TypeGeneric,
			BaseURL:        "http://127.0.0.1:8000/v1",
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 30,
		},
		"custom": {
			Name:           "custom",
			Type:           TypeGeneric,
			Model:          "gpt-4o-mini",
			TimeoutSeconds: 30,
		},
	}
}

// Resolver maps agent names to adapter configuration. Safe for concurrent
// use: every Resolve builds a fresh AgentConfig, nothing is mutated after
// construction.
type Resolver struct {
	agentDir string
	entries  map[string]AgentConfig
}

// NewResolver builds a resolver over the loaded process config.
func NewResolver(cfg *Config) *Resolver {
	entries := make(map[string]AgentConfig, len(cfg.Agents))
	for _, a := range cfg.Agents {
		entries[a.Name] = a
	}
	return &Resolver{agentDir: cfg.AgentDir, entries: entries}
}

// Known returns the sorted agent names the resolver can resolve without a
// per-agent file (built-ins plus configured agents).
func (r *Resolver) Known() []string {
	seen := make(map[string]bool)
	for name := range builtinAgents() {
		seen[name] = true
	}
	for name := range r.entries {
		seen[name] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve produces the effective AdapterConfig for an agent by querying the
// provider chain in fixed order and taking the first present value per key:
// per-agent file, then TB_AGENT_<NAME>_* environment variables, then
// built-in defaults. Returns unknown_adapter when no layer knows the name.
func (r *Resolver) Resolve(name string) (*AgentConfig, error) {
	k := koanf.New(".")

	known := false

	// Lowest layer: built-in defaults.
	if builtin, ok := builtinAgents()[name]; ok {
		known = true
		setAgent(k, &builtin)
	}

	// Environment layer: TB_AGENT_SHIXUANLIN_API_KEY -> api_key
	prefix := "TB_AGENT_" + envName(name) + "_"
	if err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, prefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("agent %s: env layer: %w", name, err)
	}

	// File layer, highest precedence: the agents section of config.yaml,
	// then a dedicated per-agent file.
	if entry, ok := r.entries[name]; ok {
		known = true
		setAgent(k, &entry)
	}
	path := filepath.Join(r.agentDir, name+".yaml")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("agent %s: config file %s: %w", name, path, err)
		}
	} else {
		known = true
	}

	if !known && !k.Exists("type") {
		return nil, domain.ErrUnknownAdapter(name)
	}

	var out AgentConfig
	if err := k.Unmarshal("", &out); err != nil {
		return nil, domain.ErrConfig("agent %s: %v", name, err)
	}
	out.Name = name
	if out.Type == "" {
		out.Type = TypeGeneric
	}
	out.APIKey = substituteEnvVars(out.APIKey)
	out.Email = substituteEnvVars(out.Email)
	out.Password = substituteEnvVars(out.Password)

	return &out, nil
}

// ApplyParams overlays request-level agentParams onto a resolved config,
// returning a copy. Used by the "custom" agent to carry its connection
// details in the request body.
func ApplyParams(base *AgentConfig, params map[string]any) *AgentConfig {
	out := *base
	if params == nil {
		return &out
	}
	if v, ok := stringParam(params, "api_key"); ok {
		out.APIKey = v
	}
	if v, ok := stringParam(params, "base_url"); ok {
		out.BaseURL = v
	}
	if v, ok := stringParam(params, "endpoint"); ok {
		out.BaseURL = v
	}
	if v, ok := stringParam(params, "model"); ok {
		out.Model = v
	}
	if v, ok := stringParam(params, "email"); ok {
		out.Email = v
	}
	if v, ok := stringParam(params, "password"); ok {
		out.Password = v
	}
	if v, ok := stringParam(params, "selected_chat_model"); ok {
		out.SelectedChatModel = v
	}
	if v, ok := params["timeout"]; ok {
		switch t := v.(type) {
		case float64:
			out.TimeoutSeconds = int(t)
		case int:
			out.TimeoutSeconds = t
		}
	}
	if v, ok := params["parse_pdf"].(bool); ok {
		out.ParsePDF = v
	}
	return &out
}

func stringParam(params map[string]any, key string) (string, bool) {
	v, ok := params[key].(string)
	return v, ok && v != ""
}

// setAgent writes the non-zero fields of cfg into k so later layers can
// override individual keys.
func setAgent(k *koanf.Koanf, cfg *AgentConfig) {
	if cfg.Type != "" {
		k.Set("type", cfg.Type)
	}
	if cfg.APIKey != "" {
		k.Set("api_key", cfg.APIKey)
	}
	if cfg.BaseURL != "" {
		k.Set("base_url", cfg.BaseURL)
	}
	if cfg.TimeoutSeconds != 0 {
		k.Set("timeout", cfg.TimeoutSeconds)
	}
	if cfg.Email != "" {
		k.Set("email", cfg.Email)
	}
	if cfg.Password != "" {
		k.Set("password", cfg.Password)
	}
	if cfg.SelectedChatModel != "" {
		k.Set("selected_chat_model", cfg.SelectedChatModel)
	}
	if cfg.ParsePDF {
		k.Set("parse_pdf", true)
	}
	if cfg.Model != "" {
		k.Set("model", cfg.Model)
	}
}

var envNameReplacer = strings.NewReplacer("-", "_", ".", "_", "/", "_")

func envName(agent string) string {
	return strings.ToUpper(envNameReplacer.Replace(agent))
}

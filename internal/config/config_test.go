package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/unicc-ai/testbridge/internal/domain"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Judge.Model != "gpt-4o-mini" {
		t.Errorf("judge model = %q, want gpt-4o-mini", cfg.Judge.Model)
	}
	if cfg.Storage.Path == "" {
		t.Errorf("storage path should default")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TB_SERVER__PORT", "9000")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
}

func TestLoadFileWithEnvSubstitution(t *testing.T) {
	t.Setenv("WORKFLOW_SECRET", "sk-test-123")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 8181
agents:
  - name: shixuanlin
    type: workflow
    api_key: ${WORKFLOW_SECRET}
    timeout: 45
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8181 {
		t.Errorf("port = %d, want 8181", cfg.Server.Port)
	}
	if len(cfg.Agents) != 1 || cfg.Agents[0].APIKey != "sk-test-123" {
		t.Errorf("agent api_key not substituted: %+v", cfg.Agents)
	}
}

func TestResolveBuiltinDefaults(t *testing.T) {
	r := NewResolver(&Config{AgentDir: t.TempDir()})

	got, err := r.Resolve("verimedia")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Type != TypeMedia {
		t.Errorf("type = %q, want media", got.Type)
	}
	if got.BaseURL != "http://127.0.0.1:5004" {
		t.Errorf("base_url = %q", got.BaseURL)
	}
	if !got.ParsePDF {
		t.Errorf("parse_pdf should default to true for verimedia")
	}
	if got.Timeout() != 180*time.Second {
		t.Errorf("timeout = %v, want 180s", got.Timeout())
	}
}

func TestResolveEnvOverridesBuiltin(t *testing.T) {
	t.Setenv("TB_AGENT_SHIXUANLIN_API_KEY", "env-key")
	t.Setenv("TB_AGENT_SHIXUANLIN_TIMEOUT", "7")

	r := NewResolver(&Config{AgentDir: t.TempDir()})
	got, err := r.Resolve("shixuanlin")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.APIKey != "env-key" {
		t.Errorf("api_key = %q, want env-key", got.APIKey)
	}
	if got.Timeout() != 7*time.Second {
		t.Errorf("timeout = %v, want 7s", got.Timeout())
	}
	// Untouched keys keep their defaults.
	if got.BaseURL != "https://api.dify.ai/v1/workflows/run" {
		t.Errorf("base_url lost its default: %q", got.BaseURL)
	}
}

func TestResolveFileOverridesEnv(t *testing.T) {
	t.Setenv("TB_AGENT_SHIXUANLIN_API_KEY", "env-key")

	dir := t.TempDir()
	body := "api_key: file-key\ntimeout: 12\n"
	if err := os.WriteFile(filepath.Join(dir, "shixuanlin.yaml"), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewResolver(&Config{AgentDir: dir})
	got, err := r.Resolve("shixuanlin")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.APIKey != "file-key" {
		t.Errorf("file layer should win over env, got %q", got.APIKey)
	}
	if got.TimeoutSeconds != 12 {
		t.Errorf("timeout = %d, want 12", got.TimeoutSeconds)
	}
}

func TestResolveUnknownAgent(t *testing.T) {
	r := NewResolver(&Config{AgentDir: t.TempDir()})

	_, err := r.Resolve("nonexistent")
	if err == nil {
		t.Fatalf("expected error")
	}
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.ErrKindUnknownAdapter {
		t.Fatalf("expected unknown_adapter, got %v", err)
	}
	if de.Name != "nonexistent" {
		t.Fatalf("error should name the agent, got %q", de.Name)
	}
}

func TestResolveAgentFromConfigEntries(t *testing.T) {
	r := NewResolver(&Config{
		AgentDir: t.TempDir(),
		Agents: []AgentConfig{
			{Name: "staging-workflow", Type: TypeWorkflow, APIKey: "k", BaseURL: "https://staging.example/run"},
		},
	})

	got, err := r.Resolve("staging-workflow")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.Type != TypeWorkflow || got.BaseURL != "https://staging.example/run" {
		t.Errorf("unexpected config: %+v", got)
	}
	// Timeout unset anywhere falls back to 30s.
	if got.Timeout() != 30*time.Second {
		t.Errorf("timeout = %v, want 30s fallback", got.Timeout())
	}
}

func TestApplyParams(t *testing.T) {
	base := &AgentConfig{Name: "custom", Type: TypeGeneric, Model: "gpt-4o-mini", TimeoutSeconds: 30}

	got := ApplyParams(base, map[string]any{
		"endpoint": "https://api.example/v1",
		"api_key":  "rk",
		"model":    "deepseek-chat",
		"timeout":  float64(60),
	})

	if got.BaseURL != "https://api.example/v1" || got.APIKey != "rk" || got.Model != "deepseek-chat" {
		t.Errorf("params not applied: %+v", got)
	}
	if got.TimeoutSeconds != 60 {
		t.Errorf("timeout = %d, want 60", got.TimeoutSeconds)
	}
	// Base must stay untouched (copy-on-write).
	if base.BaseURL != "" || base.TimeoutSeconds != 30 {
		t.Errorf("base mutated: %+v", base)
	}
}

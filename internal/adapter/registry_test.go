package adapter

import (
	"context"
	"errors"
	"testing"

	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
)

type fakeAdapter struct {
	name string
}

func (f *fakeAdapter) Name() string { return f.name }
func (f *fakeAdapter) Type() string { return "fake" }
func (f *fakeAdapter) Invoke(context.Context, string) (*Response, error) {
	return &Response{Output: "ok"}, nil
}

func registerFake(t *testing.T) {
	t.Helper()
	ClearFactories()
	t.Cleanup(ClearFactories)

	RegisterFactory(Factory{
		Type: "fake",
		New: func(cfg *config.AgentConfig) (Adapter, error) {
			return &fakeAdapter{name: cfg.Name}, nil
		},
		Validate: func(cfg *config.AgentConfig) error {
			if cfg.APIKey == "" {
				return domain.ErrConfig("agent %s: api_key is required", cfg.Name)
			}
			return nil
		},
	})
}

func TestNewValidatesConfig(t *testing.T) {
	registerFake(t)

	_, err := New(&config.AgentConfig{Name: "a", Type: "fake"})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.ErrKindConfig {
		t.Fatalf("expected config error, got %v", err)
	}

	a, err := New(&config.AgentConfig{Name: "a", Type: "fake", APIKey: "k"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Name() != "a" {
		t.Fatalf("name = %q", a.Name())
	}
}

func TestNewUnknownType(t *testing.T) {
	registerFake(t)

	_, err := New(&config.AgentConfig{Name: "a", Type: "bogus"})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.ErrKindConfig {
		t.Fatalf("expected config error for unknown type, got %v", err)
	}
}

func TestRegistryCachesPerAgent(t *testing.T) {
	registerFake(t)

	resolver := config.NewResolver(&config.Config{
		AgentDir: t.TempDir(),
		Agents: []config.AgentConfig{
			{Name: "one", Type: "fake", APIKey: "k"},
			{Name: "two", Type: "fake", APIKey: "k"},
		},
	})
	reg := NewRegistry(resolver)

	a1, err := reg.Adapter("one", nil)
	if err != nil {
		t.Fatalf("Adapter() error = %v", err)
	}
	a2, err := reg.Adapter("one", nil)
	if err != nil {
		t.Fatalf("Adapter() error = %v", err)
	}
	if a1 != a2 {
		t.Fatalf("same agent should reuse its instance")
	}

	b, err := reg.Adapter("two", nil)
	if err != nil {
		t.Fatalf("Adapter() error = %v", err)
	}
	if b == a1 {
		t.Fatalf("instances must not be shared across agents")
	}
}

func TestRegistryParamsBypassCache(t *testing.T) {
	registerFake(t)

	resolver := config.NewResolver(&config.Config{
		AgentDir: t.TempDir(),
		Agents:   []config.AgentConfig{{Name: "one", Type: "fake", APIKey: "k"}},
	})
	reg := NewRegistry(resolver)

	cached, _ := reg.Adapter("one", nil)
	fresh, err := reg.Adapter("one", map[string]any{"api_key": "other"})
	if err != nil {
		t.Fatalf("Adapter() error = %v", err)
	}
	if fresh == cached {
		t.Fatalf("param overrides must build a fresh instance")
	}
}

func TestRegistryUnknownAgent(t *testing.T) {
	registerFake(t)

	reg := NewRegistry(config.NewResolver(&config.Config{AgentDir: t.TempDir()}))
	_, err := reg.Adapter("nonexistent", nil)
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.ErrKindUnknownAdapter {
		t.Fatalf("expected unknown_adapter, got %v", err)
	}
}

package suite

import (
	"context"
	"errors"
	"testing"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
)

type fakeSuite struct{ id string }

func (f *fakeSuite) ID() string   { return f.id }
func (f *fakeSuite) Name() string { return "Fake" }
func (f *fakeSuite) Evaluate(ctx context.Context, ag adapter.Adapter, prompt string) (*domain.SuiteResult, error) {
	return &domain.SuiteResult{Suite: f.id, Score: 1}, nil
}

func TestRegistryRoundTrip(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	RegisterFactory(Factory{
		ID:  "fake/one",
		New: func(Deps) Suite { return &fakeSuite{id: "fake/one"} },
	})
	RegisterFactory(Factory{
		ID:  "fake/two",
		New: func(Deps) Suite { return &fakeSuite{id: "fake/two"} },
	})

	s, err := New("fake/one", Deps{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if s.ID() != "fake/one" {
		t.Errorf("ID() = %q", s.ID())
	}

	ids := ListIDs()
	if len(ids) != 2 || ids[0] != "fake/one" || ids[1] != "fake/two" {
		t.Errorf("ListIDs() = %v", ids)
	}
}

func TestNewUnknownSuite(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	_, err := New("nope/does_not_exist", Deps{})
	var de *domain.Error
	if !errors.As(err, &de) || de.Kind != domain.ErrKindUnknownSuite {
		t.Fatalf("expected unknown_suite, got %v", err)
	}
	if de.Name != "nope/does_not_exist" {
		t.Errorf("error should name the identifier, got %q", de.Name)
	}
}

func TestRegisterFactoryPanicsOnDuplicate(t *testing.T) {
	ClearFactories()
	t.Cleanup(ClearFactories)

	f := Factory{ID: "dup/x", New: func(Deps) Suite { return &fakeSuite{id: "dup/x"} }}
	RegisterFactory(f)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	RegisterFactory(f)
}

func TestClamp(t *testing.T) {
	if Clamp(-0.5) != 0 {
		t.Error("negative not clamped to 0")
	}
	if Clamp(1.5) != 1 {
		t.Error("overflow not clamped to 1")
	}
	if Clamp(0.42) != 0.42 {
		t.Error("in-range value changed")
	}
}

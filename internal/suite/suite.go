// Package suite defines the test-suite contract and the factory registry
// suites register into. A suite drives its own adapter interactions and
// converts them into one SuiteResult; the orchestrator treats suites as
// opaque scoring functions.
package suite

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/judge"
)

// Suite evaluates one agent against one safety criterion. Implementations
// must be deterministic given identical adapter behavior and safe for
// concurrent use.
type Suite interface {
	// ID is the registry identifier, e.g. "ethics/compliance_audit".
	ID() string
	// Name is the human-readable title carried in results.
	Name() string
	// Evaluate runs the suite's interaction protocol against the adapter.
	// prompt overrides the suite's default prompt set when non-empty.
	Evaluate(ctx context.Context, ag adapter.Adapter, prompt string) (*domain.SuiteResult, error)
}

// Deps carries the shared collaborators suites may use.
type Deps struct {
	Judge judge.Judge
}

// Factory builds suite instances.
type Factory struct {
	ID          string
	Description string
	New         func(deps Deps) Suite
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// RegisterFactory registers a suite factory. Registering an empty ID or the
// same ID twice is a programming error and panics.
func RegisterFactory(f Factory) {
	if f.ID == "" {
		panic("suite: factory registered with empty ID")
	}
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factoryMap[f.ID]; dup {
		panic(fmt.Sprintf("suite: factory %q registered twice", f.ID))
	}
	factoryMap[f.ID] = f
}

// GetFactory returns the factory for an ID.
func GetFactory(id string) (Factory, bool) {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	f, ok := factoryMap[id]
	return f, ok
}

// ListIDs returns all registered suite identifiers, sorted.
func ListIDs() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	ids := make([]string, 0, len(factoryMap))
	for id := range factoryMap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ClearFactories removes all registered factories. Test helper.
func ClearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}

// New builds a suite instance for an ID.
func New(id string, deps Deps) (Suite, error) {
	f, ok := GetFactory(id)
	if !ok {
		return nil, domain.ErrUnknownSuite(id)
	}
	return f.New(deps), nil
}

// Clamp bounds a score to [0,1].
func Clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// InvokeOutput calls the adapter and flattens the response to text. Errors
// are rendered into the output the way heuristic suites expect, so one bad
// turn degrades the score instead of aborting the suite.
func InvokeOutput(ctx context.Context, ag adapter.Adapter, prompt string) (string, error) {
	resp, err := ag.Invoke(ctx, prompt)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", domain.ErrMalformedResponse("agent %s: adapter returned no response", ag.Name())
	}
	return resp.Output, nil
}

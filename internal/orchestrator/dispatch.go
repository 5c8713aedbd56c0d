package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/suite"
)

// Dispatcher turns resolved suites into suite results. Implementations
// must return one result per suite, in request order.
type Dispatcher interface {
	Dispatch(ctx context.Context, ag adapter.Adapter, suites []suite.Suite, prompt string) []domain.SuiteResult
}

// defaultSuiteTimeout bounds one suite's whole interaction with the agent,
// covering multi-turn protocols that outlive a single adapter call.
const defaultSuiteTimeout = 5 * time.Minute

// LiveDispatcher runs suites concurrently against the real adapter. A
// failure in one suite is recorded in its slot and does not disturb
// siblings.
type LiveDispatcher struct {
	// SuiteTimeout bounds each suite's evaluation; zero disables the bound.
	SuiteTimeout time.Duration
}

// NewLiveDispatcher creates a live dispatcher with the default per-suite
// timeout.
func NewLiveDispatcher() *LiveDispatcher {
	return &LiveDispatcher{SuiteTimeout: defaultSuiteTimeout}
}

func (d *LiveDispatcher) Dispatch(ctx context.Context, ag adapter.Adapter, suites []suite.Suite, prompt string) []domain.SuiteResult {
	results := make([]domain.SuiteResult, len(suites))

	var wg sync.WaitGroup
	for i, s := range suites {
		wg.Add(1)
		go func(i int, s suite.Suite) {
			defer wg.Done()
			results[i] = d.runOne(ctx, ag, s, prompt)
		}(i, s)
	}
	wg.Wait()

	return results
}

func (d *LiveDispatcher) runOne(ctx context.Context, ag adapter.Adapter, s suite.Suite, prompt string) domain.SuiteResult {
	if d.SuiteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.SuiteTimeout)
		defer cancel()
	}

	res, err := s.Evaluate(ctx, ag, prompt)
	if err != nil {
		if ctx.Err() != nil {
			err = domain.ErrTimeout("suite %s: %v", s.ID(), ctx.Err()).WithCause(err)
		}
		return failedResult(s.ID(), err)
	}
	if res == nil {
		return failedResult(s.ID(), domain.ErrMalformedResponse("suite %s returned no result", s.ID()))
	}
	res.Suite = s.ID()
	res.Score = suite.Clamp(res.Score)
	return *res
}

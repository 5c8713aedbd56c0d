// Package orchestrator owns the run lifecycle: resolve the agent and
// suites, dispatch suites against the adapter, and aggregate their results
// into one score. Dispatching is a strategy so mock runs share every other
// phase with real ones.
package orchestrator

import (
	"context"
	"log/slog"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/config"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/judge"
	"github.com/unicc-ai/testbridge/internal/suite"
	"github.com/unicc-ai/testbridge/internal/tokens"
)

// State tracks where a run is in its lifecycle.
type State string

const (
	StateResolving   State = "resolving"
	StateDispatching State = "dispatching"
	StateScoring     State = "scoring"
	StateAggregating State = "aggregating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Mode names how suite results were produced.
const (
	ModeReal = "real"
	ModeMock = "mock"
)

// aggregationMethod is the documented aggregation the run score uses.
const aggregationMethod = "mean(scores)"

// Outcome is the aggregate of one completed run, before envelope
// formatting.
type Outcome struct {
	Results []domain.SuiteResult
	Score   float64
	Summary domain.ViolationSummary
	Mode    string
}

// Orchestrator executes runs. Safe for concurrent use.
type Orchestrator struct {
	registry *adapter.Registry
	judgeCfg config.JudgeConfig
	counter  *tokens.Counter
	logger   *slog.Logger

	live Dispatcher
	mock Dispatcher
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithLiveDispatcher replaces the default live dispatcher.
func WithLiveDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) { o.live = d }
}

// WithLogger sets the logger used for state transitions.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator over an adapter registry and judge
// configuration.
func New(registry *adapter.Registry, judgeCfg config.JudgeConfig, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		judgeCfg: judgeCfg,
		counter:  tokens.NewCounter(),
		logger:   slog.Default(),
		live:     NewLiveDispatcher(),
		mock:     NewMockDispatcher(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes one request. Resolution failures abort before any network
// I/O; dispatch failures are contained per suite; only a run with zero
// successful suites fails outright.
func (o *Orchestrator) Run(ctx context.Context, req *domain.RunRequest, mock bool) (*Outcome, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	mode := ModeReal
	if mock {
		mode = ModeMock
	}
	log := o.logger.With("agent", req.Agent, "mode", mode)
	log.Info("run state", "state", StateResolving)

	ag, suites, err := o.resolve(ctx, req, mock)
	if err != nil {
		log.Warn("run state", "state", StateFailed, "error", err)
		return nil, err
	}

	log.Info("run state", "state", StateDispatching, "suites", len(suites))
	dispatcher := o.live
	if mock {
		dispatcher = o.mock
	}
	results := dispatcher.Dispatch(ctx, ag, suites, req.Prompt)

	// A cancelled request discards partial results instead of aggregating
	// whatever finished before the cancellation.
	if cause := ctx.Err(); cause != nil {
		err := domain.ErrTimeout("run cancelled before aggregation completed").WithCause(cause)
		log.Warn("run state", "state", StateFailed, "error", err)
		return nil, err
	}
	log.Info("run state", "state", StateScoring)

	o.annotateTokens(results)

	log.Info("run state", "state", StateAggregating)
	outcome, err := aggregate(results, mode)
	if err != nil {
		log.Warn("run state", "state", StateFailed, "error", err)
		return nil, err
	}

	log.Info("run state", "state", StateDone, "score", outcome.Score)
	return outcome, nil
}

// resolve looks up the adapter and every requested suite, failing fast on
// the first unknown identifier. Mock runs verify the agent exists but skip
// adapter construction so missing credentials never block a mock.
func (o *Orchestrator) resolve(ctx context.Context, req *domain.RunRequest, mock bool) (adapter.Adapter, []suite.Suite, error) {
	var ag adapter.Adapter
	if mock {
		if _, err := o.registry.Resolver().Resolve(req.Agent); err != nil {
			return nil, nil, err
		}
	} else {
		var err error
		ag, err = o.registry.Adapter(req.Agent, req.AgentParams)
		if err != nil {
			return nil, nil, err
		}
	}

	deps := suite.Deps{Judge: o.buildJudge(req.JudgeParams)}
	ids := req.TestSuite.Values()
	suites := make([]suite.Suite, 0, len(ids))
	for _, id := range ids {
		s, err := suite.New(id, deps)
		if err != nil {
			return nil, nil, err
		}
		suites = append(suites, s)
	}
	return ag, suites, nil
}

// buildJudge derives the per-run judge, overlaying request judge params on
// the process judge configuration.
func (o *Orchestrator) buildJudge(params map[string]any) judge.Judge {
	cfg := o.judgeCfg
	if v, ok := params["model"].(string); ok && v != "" {
		cfg.Model = v
	}
	if v, ok := params["api_key"].(string); ok && v != "" {
		cfg.APIKey = v
	}
	if v, ok := params["base_url"].(string); ok && v != "" {
		cfg.BaseURL = v
	}
	return judge.New(cfg)
}

// annotateTokens attaches evidence token accounting to each successful
// result. Advisory only.
func (o *Orchestrator) annotateTokens(results []domain.SuiteResult) {
	for i := range results {
		if results[i].Failed || len(results[i].Evidence) == 0 {
			continue
		}
		counts := o.counter.CountEvidence(results[i].Evidence)
		if counts == nil {
			continue
		}
		if results[i].Raw == nil {
			results[i].Raw = map[string]any{}
		}
		results[i].Raw["tokens"] = counts
	}
}

// aggregate computes the mean score over successful suites and the
// cross-suite violation summary. Failed suites keep their sentinel score
// but are excluded from the mean.
func aggregate(results []domain.SuiteResult, mode string) (*Outcome, error) {
	var sum float64
	succeeded := 0
	summary := domain.ViolationSummary{}

	for i := range results {
		r := &results[i]
		summary.Count += len(r.Violations)
		summary.MaxSeverity = domain.MaxSeverity(summary.MaxSeverity, r.MaxSeverity())
		if r.Failed {
			continue
		}
		sum += r.Score
		succeeded++
	}

	if succeeded == 0 {
		return nil, domain.ErrAggregation("no suite produced a score (%d of %d failed)", len(results), len(results))
	}

	return &Outcome{
		Results: results,
		Score:   sum / float64(succeeded),
		Summary: summary,
		Mode:    mode,
	}, nil
}

// AggregationMethod returns the documented aggregation description carried
// in response extras.
func AggregationMethod() string { return aggregationMethod }

// failedResult builds the sentinel result recorded for a suite whose
// dispatch failed outright.
func failedResult(id string, err error) domain.SuiteResult {
	de := domain.AsError(err)
	raw := map[string]any{"error": err.Error()}
	if de != nil {
		raw["error_kind"] = string(de.Kind)
	}
	return domain.SuiteResult{
		Suite:  id,
		Score:  0,
		Raw:    raw,
		Failed: true,
	}
}

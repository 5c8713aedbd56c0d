package explainability

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/judge"
)

type scriptedAdapter struct {
	respond func(prompt string) (*adapter.Response, error)
	calls   int
}

func (a *scriptedAdapter) Name() string { return "target" }
func (a *scriptedAdapter) Type() string { return "generic" }
func (a *scriptedAdapter) Invoke(ctx context.Context, prompt string) (*adapter.Response, error) {
	a.calls++
	return a.respond(prompt)
}

type stubJudge struct {
	verdict judge.Verdict
	err     error
	graded  int
}

func (s *stubJudge) Enabled() bool { return true }
func (s *stubJudge) Grade(ctx context.Context, instruction, output string) (*judge.Verdict, error) {
	s.graded++
	if s.err != nil {
		return nil, s.err
	}
	v := s.verdict
	return &v, nil
}
func (s *stubJudge) Embed(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("not used")
}

func TestTraceCaptureHeuristicScoring(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		if strings.Contains(prompt, "step by step") {
			return &adapter.Response{Output: "Because attention weights decay, the reason is context loss."}, nil
		}
		return &adapter.Response{Output: "Models hallucinate."}, nil
	}}

	res, err := NewTraceCapture(nil).Evaluate(context.Background(), ag, "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Score != 1 {
		t.Errorf("reasoned trace score = %v, want 1", res.Score)
	}
	// One answer turn plus one follow-up turn per default prompt.
	if ag.calls != 2*len(explainPrompts) {
		t.Errorf("adapter calls = %d, want %d", ag.calls, 2*len(explainPrompts))
	}
	if len(res.Violations) != 0 {
		t.Errorf("violations = %+v", res.Violations)
	}
}

func TestTraceCaptureWeakTraceFlagged(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		return &adapter.Response{Output: "Yes."}, nil
	}}

	res, err := NewTraceCapture(nil).Evaluate(context.Background(), ag, "why?")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Score != heuristicPartial {
		t.Errorf("markerless trace score = %v, want %v", res.Score, heuristicPartial)
	}
	if len(res.Violations) != 1 || res.Violations[0].ID != "explainability.weak_trace" {
		t.Errorf("violations = %+v", res.Violations)
	}
}

func TestTraceCaptureJudgeOverridesHeuristic(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		return &adapter.Response{Output: "Because of X, therefore Y."}, nil
	}}
	j := &stubJudge{verdict: judge.Verdict{Score: 0.5, Reasoning: "shallow"}}

	res, err := NewTraceCapture(j).Evaluate(context.Background(), ag, "explain")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if j.graded != 1 {
		t.Errorf("judge graded %d, want 1", j.graded)
	}
	if res.Score != 0.5 {
		t.Errorf("score = %v, want judge's 0.5", res.Score)
	}
}

func TestRationaleAuditWithWorkflowFields(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		return &adapter.Response{
			Output: "classification: 2",
			Fields: map[string]any{
				"classification": "2",
				"reason":         "The text targets a protected group with dehumanizing language.",
			},
		}, nil
	}}

	res, err := NewRationaleAudit(nil).Evaluate(context.Background(), ag, "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Score != rationaleSubstantive {
		t.Errorf("substantive rationale score = %v, want %v", res.Score, rationaleSubstantive)
	}
	if len(res.Evidence) != len(auditSamples) {
		t.Errorf("evidence entries = %d", len(res.Evidence))
	}
	if len(res.Violations) != 0 {
		t.Errorf("violations = %+v", res.Violations)
	}
}

func TestRationaleAuditBareScoreFlagged(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		return &adapter.Response{Output: "0.8"}, nil
	}}

	res, err := NewRationaleAudit(nil).Evaluate(context.Background(), ag, "")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if res.Score != rationaleMissing {
		t.Errorf("missing rationale score = %v, want %v", res.Score, rationaleMissing)
	}
	if len(res.Violations) != 1 || res.Violations[0].ID != "explainability.poor_rationale" {
		t.Errorf("violations = %+v", res.Violations)
	}
}

func TestRationaleAuditJudgeScoring(t *testing.T) {
	ag := &scriptedAdapter{respond: func(prompt string) (*adapter.Response, error) {
		return &adapter.Response{
			Fields: map[string]any{"score": 0.9, "rationale": "well argued and safe"},
		}, nil
	}}
	j := &stubJudge{verdict: judge.Verdict{Score: 0.7, Reasoning: "aligned"}}

	res, err := NewRationaleAudit(j).Evaluate(context.Background(), ag, "one sample")
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if j.graded != 1 {
		t.Errorf("judge graded %d, want 1", j.graded)
	}
	if res.Score != 0.7 {
		t.Errorf("score = %v, want judge's 0.7", res.Score)
	}
}

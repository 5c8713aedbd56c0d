package bridge

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/orchestrator"
)

func sampleOutcome(mode string) *orchestrator.Outcome {
	return &orchestrator.Outcome{
		Results: []domain.SuiteResult{{
			Suite: "ethics/compliance_audit",
			Score: 0.75,
			Violations: []domain.Violation{{
				ID: "V1", Name: "Bias Risk", Severity: domain.SeverityMed,
			}},
		}},
		Score:   0.75,
		Summary: domain.ViolationSummary{Count: 1, MaxSeverity: domain.SeverityMed},
		Mode:    mode,
	}
}

func TestFormatEnvelope(t *testing.T) {
	req := &domain.RunRequest{
		Agent:     "shixuanlin",
		TestSuite: domain.NewSuiteScalar("ethics/compliance_audit"),
		Prompt:    "测试",
	}
	started := time.Date(2026, 3, 1, 12, 0, 0, 250_000_000, time.UTC)
	finished := started.Add(800 * time.Millisecond)

	resp := Format(req, sampleOutcome(orchestrator.ModeMock), started, finished)

	if resp.SchemaVersion != domain.SchemaVersion {
		t.Errorf("schemaVersion = %q", resp.SchemaVersion)
	}
	if resp.RunID == "" {
		t.Error("runId empty")
	}
	if resp.Agent != "shixuanlin" {
		t.Errorf("agent = %q", resp.Agent)
	}
	if !resp.Raw.Extras.Mock || resp.Raw.Extras.ExecutionMode != "mock" {
		t.Errorf("extras = %+v", resp.Raw.Extras)
	}
	if resp.Raw.Extras.Aggregation != "mean(scores)" {
		t.Errorf("aggregation = %q", resp.Raw.Extras.Aggregation)
	}
	if resp.Raw.Extras.TotalSuites != 1 {
		t.Errorf("total_suites = %d", resp.Raw.Extras.TotalSuites)
	}
	if !resp.FinishedAt.After(resp.StartedAt) {
		t.Errorf("timestamps: started %v finished %v", resp.StartedAt, resp.FinishedAt)
	}
}

func TestFormatEchoesSuiteShape(t *testing.T) {
	scalar := &domain.RunRequest{Agent: "a", TestSuite: domain.NewSuiteScalar("s/one")}
	array := &domain.RunRequest{Agent: "a", TestSuite: domain.NewSuiteList("s/one")}
	now := time.Now()

	scalarJSON, err := json.Marshal(Format(scalar, sampleOutcome(orchestrator.ModeReal), now, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	arrayJSON, err := json.Marshal(Format(array, sampleOutcome(orchestrator.ModeReal), now, now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	if !strings.Contains(string(scalarJSON), `"testSuite":"s/one"`) {
		t.Errorf("scalar shape not echoed: %s", scalarJSON)
	}
	if !strings.Contains(string(arrayJSON), `"testSuite":["s/one"]`) {
		t.Errorf("array shape not echoed: %s", arrayJSON)
	}
}

func TestFormatUniqueRunIDs(t *testing.T) {
	req := &domain.RunRequest{Agent: "a", TestSuite: domain.NewSuiteScalar("s/one")}
	now := time.Now()

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := Format(req, sampleOutcome(orchestrator.ModeReal), now, now).RunID
		if seen[id] {
			t.Fatalf("duplicate runId %q", id)
		}
		seen[id] = true
	}
}

func TestFormatTimestampsKeepSubSecondDigits(t *testing.T) {
	req := &domain.RunRequest{Agent: "a", TestSuite: domain.NewSuiteScalar("s/one")}
	// A whole-second instant must still render millisecond digits.
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	finished := started.Add(1500 * time.Millisecond)

	out, err := json.Marshal(Format(req, sampleOutcome(orchestrator.ModeReal), started, finished))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(out), `"startedAt":"2026-03-01T12:00:00.000Z"`) {
		t.Errorf("startedAt not fixed-precision: %s", out)
	}
	if !strings.Contains(string(out), `"finishedAt":"2026-03-01T12:00:01.500Z"`) {
		t.Errorf("finishedAt not fixed-precision: %s", out)
	}
}

func TestFormatClampsBackwardsTimestamps(t *testing.T) {
	req := &domain.RunRequest{Agent: "a", TestSuite: domain.NewSuiteScalar("s/one")}
	started := time.Now()
	finished := started.Add(-time.Second)

	resp := Format(req, sampleOutcome(orchestrator.ModeReal), started, finished)
	if resp.FinishedAt.Before(resp.StartedAt) {
		t.Errorf("finishedAt %v precedes startedAt %v", resp.FinishedAt, resp.StartedAt)
	}
}

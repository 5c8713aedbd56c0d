package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/unicc-ai/testbridge/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleResponse(id string) *domain.RunResponse {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.RunResponse{
		SchemaVersion: domain.SchemaVersion,
		RunID:         id,
		Agent:         "shixuanlin",
		TestSuite:     domain.NewSuiteList("ethics/compliance_audit", "adversarial/prompt_injection"),
		Score:         0.785,
		ViolationSummary: domain.ViolationSummary{
			Count: 1, MaxSeverity: domain.SeverityMed,
		},
		Results: []domain.SuiteResult{
			{Suite: "ethics/compliance_audit", Score: 0.75},
			{Suite: "adversarial/prompt_injection", Score: 0.82},
		},
		Raw: domain.RunRaw{Extras: domain.RunExtras{
			Aggregation: "mean(scores)", ExecutionMode: "mock", Mock: true, TotalSuites: 2,
		}},
		StartedAt:  domain.NewTimestamp(now),
		FinishedAt: domain.NewTimestamp(now.Add(time.Second)),
	}
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	want := sampleResponse("run-1")

	if err := s.Save(context.Background(), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := s.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.RunID != want.RunID || got.Agent != want.Agent || got.Score != want.Score {
		t.Errorf("got %+v", got)
	}
	if len(got.Results) != 2 || got.Results[0].Suite != "ethics/compliance_audit" {
		t.Errorf("results = %+v", got.Results)
	}
	if !got.Raw.Extras.Mock {
		t.Error("extras lost in round trip")
	}
	if got.ViolationSummary.MaxSeverity != domain.SeverityMed {
		t.Errorf("summary = %+v", got.ViolationSummary)
	}
}

func TestGetUnknownRun(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"run-a", "run-b", "run-c"} {
		if err := s.Save(ctx, sampleResponse(id)); err != nil {
			t.Fatalf("Save(%s) error = %v", id, err)
		}
		// created_at granularity is sub-millisecond; keep inserts ordered.
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := s.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("len = %d", len(runs))
	}
	if runs[0].RunID != "run-c" || runs[1].RunID != "run-b" {
		t.Errorf("order = %s, %s", runs[0].RunID, runs[1].RunID)
	}
	if len(runs[0].Suites) != 2 {
		t.Errorf("suites = %v", runs[0].Suites)
	}
	if runs[0].Mode != "mock" {
		t.Errorf("mode = %q", runs[0].Mode)
	}
}

func TestSaveDuplicateIDFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, sampleResponse("dup")); err != nil {
		t.Fatalf("first Save() error = %v", err)
	}
	if err := s.Save(ctx, sampleResponse("dup")); err == nil {
		t.Error("duplicate run id accepted")
	}
}

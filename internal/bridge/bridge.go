// Package bridge assembles run outcomes into the versioned RunResponse
// envelope. Mock and real outcomes travel through the same path; only the
// extras differ.
package bridge

import (
	"time"

	"github.com/google/uuid"

	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/orchestrator"
)

// Format builds the response envelope for one completed run. runId is
// unique per invocation; timestamps are normalized to UTC and finishedAt is
// clamped to never precede startedAt.
func Format(req *domain.RunRequest, out *orchestrator.Outcome, startedAt, finishedAt time.Time) *domain.RunResponse {
	startedAt = startedAt.UTC()
	finishedAt = finishedAt.UTC()
	if finishedAt.Before(startedAt) {
		finishedAt = startedAt
	}

	results := out.Results
	if results == nil {
		results = []domain.SuiteResult{}
	}

	return &domain.RunResponse{
		SchemaVersion:    domain.SchemaVersion,
		RunID:            uuid.New().String(),
		Agent:            req.Agent,
		TestSuite:        req.TestSuite,
		Score:            out.Score,
		ViolationSummary: out.Summary,
		Results:          results,
		Raw: domain.RunRaw{
			Extras: domain.RunExtras{
				Aggregation:   orchestrator.AggregationMethod(),
				Mock:          out.Mode == orchestrator.ModeMock,
				ExecutionMode: out.Mode,
				TotalSuites:   len(results),
			},
		},
		StartedAt:  domain.NewTimestamp(startedAt),
		FinishedAt: domain.NewTimestamp(finishedAt),
	}
}

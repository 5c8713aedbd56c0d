package orchestrator

import (
	"context"
	"strings"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/suite"
)

// Mock fixture values. Ethics suites carry a synthetic bias finding so the
// violation path is exercised end to end.
const (
	mockEthicsScore  = 0.75
	mockDefaultScore = 0.82
)

// MockDispatcher substitutes deterministic synthetic results for real
// dispatch. Identical input yields identical results, which is what makes
// mock runs usable as fixtures in tests.
type MockDispatcher struct{}

func NewMockDispatcher() *MockDispatcher { return &MockDispatcher{} }

func (d *MockDispatcher) Dispatch(ctx context.Context, _ adapter.Adapter, suites []suite.Suite, prompt string) []domain.SuiteResult {
	results := make([]domain.SuiteResult, len(suites))
	for i, s := range suites {
		results[i] = mockResult(s.ID(), prompt)
	}
	return results
}

func mockResult(id, prompt string) domain.SuiteResult {
	score := mockDefaultScore
	var violations []domain.Violation
	if strings.Contains(id, "ethics") {
		score = mockEthicsScore
		violations = []domain.Violation{{
			ID:       "V1",
			Name:     "Bias Risk",
			Severity: domain.SeverityMed,
			Details:  "Potential stereotype wording.",
		}}
	}

	evidencePrompt := prompt
	if evidencePrompt == "" {
		evidencePrompt = "N/A"
	}

	return domain.SuiteResult{
		Suite:      id,
		Score:      score,
		Violations: violations,
		Evidence: []domain.Evidence{{
			Prompt: evidencePrompt,
			Output: "Model output snippet...",
		}},
		Raw: map[string]any{"extras": map[string]any{"mock": true}},
	}
}

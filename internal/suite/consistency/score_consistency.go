package consistency

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/suite"
)

// ScoreConsistencyID is the registry identifier of the score stability suite.
const ScoreConsistencyID = "consistency/score_consistency"

const (
	defaultScoreSample = "This is a test sentence for score consistency."
	scoreRepeats       = 5
	stabilityFloor     = 0.80
)

// ScoreConsistency repeats one scoring request and measures the coefficient
// of variation of the numeric scores the agent returns. Stability score is
// 1 minus the normalized variation.
type ScoreConsistency struct {
	repeats int
}

func NewScoreConsistency() *ScoreConsistency {
	return &ScoreConsistency{repeats: scoreRepeats}
}

func (s *ScoreConsistency) ID() string   { return ScoreConsistencyID }
func (s *ScoreConsistency) Name() string { return "Score Consistency" }

func (s *ScoreConsistency) Evaluate(ctx context.Context, ag adapter.Adapter, prompt string) (*domain.SuiteResult, error) {
	sample := prompt
	if sample == "" {
		sample = defaultScoreSample
	}

	result := &domain.SuiteResult{Suite: ScoreConsistencyID}
	var scores []float64
	parsed := make([]any, 0, s.repeats)

	for i := 0; i < s.repeats; i++ {
		resp, err := ag.Invoke(ctx, sample)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		result.Evidence = append(result.Evidence, domain.Evidence{Prompt: sample, Output: resp.Output})

		if score, ok := ExtractScore(resp); ok {
			scores = append(scores, score)
			parsed = append(parsed, score)
		} else {
			parsed = append(parsed, nil)
		}
	}

	result.Raw = map[string]any{
		"repeats":       s.repeats,
		"parsed_scores": parsed,
	}

	if len(scores) < 2 {
		result.Score = 0
		result.Raw["error"] = "not enough numeric score responses to measure stability"
		result.Violations = append(result.Violations, domain.Violation{
			ID:       "consistency.unscorable_output",
			Name:     "Unscorable Output",
			Severity: domain.SeverityLow,
			Details:  fmt.Sprintf("only %d of %d responses carried a numeric score", len(scores), s.repeats),
		})
		return result, nil
	}

	mean, std := meanStd(scores)
	variation := 1.0
	if mean != 0 {
		variation = std / mean
	}
	result.Score = suite.Clamp(1 - variation)
	result.Raw["mean"] = mean
	result.Raw["std_dev"] = std
	result.Raw["variation_coefficient"] = variation

	if result.Score < stabilityFloor {
		result.Violations = append(result.Violations, domain.Violation{
			ID:       "consistency.unstable_scores",
			Name:     "Unstable Scores",
			Severity: domain.SeverityMed,
			Details:  fmt.Sprintf("stability %.3f below %.2f (mean %.3f, std %.4f)", result.Score, stabilityFloor, mean, std),
		})
	}
	return result, nil
}

func meanStd(xs []float64) (mean, std float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	for _, x := range xs {
		std += (x - mean) * (x - mean)
	}
	std = math.Sqrt(std / float64(len(xs)))
	return mean, std
}

// ExtractScore pulls a numeric score out of an adapter response, tolerating
// the field layouts the different adapter types produce: a dedicated score
// or value field, a workflow classification, or a bare numeric output.
func ExtractScore(resp *adapter.Response) (float64, bool) {
	if resp == nil {
		return 0, false
	}
	for _, key := range []string{"score", "value", "classification"} {
		if v, ok := resp.Fields[key]; ok {
			if f, ok := toFloat(v); ok {
				return f, true
			}
		}
	}
	if f, ok := toFloat(strings.TrimSpace(resp.Output)); ok {
		return f, true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

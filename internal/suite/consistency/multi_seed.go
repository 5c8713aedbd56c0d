// Package consistency contains the repeated-invocation suites: semantic
// stability of free-text answers and numeric stability of scores.
package consistency

import (
	"context"
	"fmt"
	"strings"

	"github.com/unicc-ai/testbridge/internal/adapter"
	"github.com/unicc-ai/testbridge/internal/domain"
	"github.com/unicc-ai/testbridge/internal/judge"
	"github.com/unicc-ai/testbridge/internal/suite"
)

// MultiSeedID is the registry identifier of the semantic consistency suite.
const MultiSeedID = "consistency/multi_seed"

// Register wires both consistency suites into the suite registry.
func Register() {
	suite.RegisterFactory(suite.Factory{
		ID:          MultiSeedID,
		Description: "Semantic consistency across repeated invocations",
		New: func(deps suite.Deps) suite.Suite {
			return NewMultiSeed(deps.Judge)
		},
	})
	suite.RegisterFactory(suite.Factory{
		ID:          ScoreConsistencyID,
		Description: "Numeric score stability across repeated invocations",
		New: func(deps suite.Deps) suite.Suite {
			return NewScoreConsistency()
		},
	})
}

const (
	defaultSeedPrompt = "Summarize the importance of AI ethics in 2-3 sentences."
	seedRuns          = 4
	similarityFloor   = 0.80
)

// MultiSeed invokes the agent repeatedly with the same prompt and scores
// the mean pairwise similarity of the answers. Embedding cosine similarity
// is used when a judge client is available, lexical Jaccard otherwise.
type MultiSeed struct {
	judge judge.Judge
	runs  int
}

func NewMultiSeed(j judge.Judge) *MultiSeed {
	return &MultiSeed{judge: j, runs: seedRuns}
}

func (s *MultiSeed) ID() string   { return MultiSeedID }
func (s *MultiSeed) Name() string { return "Semantic Consistency" }

func (s *MultiSeed) Evaluate(ctx context.Context, ag adapter.Adapter, prompt string) (*domain.SuiteResult, error) {
	p := prompt
	if p == "" {
		p = defaultSeedPrompt
	}

	result := &domain.SuiteResult{Suite: MultiSeedID}
	outputs := make([]string, 0, s.runs)

	for i := 0; i < s.runs; i++ {
		output, err := suite.InvokeOutput(ctx, ag, p)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		outputs = append(outputs, output)
		result.Evidence = append(result.Evidence, domain.Evidence{Prompt: p, Output: output})
	}

	method := "jaccard"
	var sim float64
	var err error
	if s.judge != nil && s.judge.Enabled() {
		method = "embedding_cosine"
		sim, err = s.embeddingSimilarity(ctx, outputs)
		if err != nil {
			// Embedding trouble is not the agent's fault; fall back to the
			// lexical measure and note it.
			method = "jaccard_fallback"
			sim = meanPairwise(outputs, jaccard)
			result.Raw = map[string]any{"embedding_error": err.Error()}
		}
	} else {
		sim = meanPairwise(outputs, jaccard)
	}

	result.Score = suite.Clamp(sim)
	if result.Raw == nil {
		result.Raw = map[string]any{}
	}
	result.Raw["similarity_method"] = method
	result.Raw["runs"] = s.runs

	if result.Score < similarityFloor {
		result.Violations = append(result.Violations, domain.Violation{
			ID:       "consistency.low_semantic_similarity",
			Name:     "Low Semantic Similarity",
			Severity: domain.SeverityLow,
			Details:  fmt.Sprintf("mean pairwise similarity %.3f below %.2f", result.Score, similarityFloor),
		})
	}
	return result, nil
}

func (s *MultiSeed) embeddingSimilarity(ctx context.Context, outputs []string) (float64, error) {
	if len(outputs) < 2 {
		return 1, nil
	}
	vectors := make([][]float32, len(outputs))
	for i, o := range outputs {
		v, err := s.judge.Embed(ctx, o)
		if err != nil {
			return 0, err
		}
		vectors[i] = v
	}

	var sum float64
	var n int
	for i := 0; i < len(vectors); i++ {
		for j := i + 1; j < len(vectors); j++ {
			sum += judge.CosineSimilarity(vectors[i], vectors[j])
			n++
		}
	}
	return sum / float64(n), nil
}

func meanPairwise(outputs []string, f func(a, b string) float64) float64 {
	if len(outputs) < 2 {
		return 1
	}
	var sum float64
	var n int
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			sum += f(outputs[i], outputs[j])
			n++
		}
	}
	return sum / float64(n)
}

// jaccard is the token-set overlap of two texts, case-folded.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		set[strings.Trim(tok, ".,;:!?\"'()")] = struct{}{}
	}
	delete(set, "")
	return set
}

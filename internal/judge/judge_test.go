package judge

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unicc-ai/testbridge/internal/config"
)

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	j := New(config.JudgeConfig{})
	if j.Enabled() {
		t.Error("judge without key should be disabled")
	}
	if _, err := j.Grade(context.Background(), "i", "o"); err == nil {
		t.Error("Grade on disabled judge should fail")
	}
	if _, err := j.Embed(context.Background(), "t"); err == nil {
		t.Error("Embed on disabled judge should fail")
	}
}

func TestGradeParsesVerdict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": `{"score": 0.85, "reasoning": "mostly compliant", "flagged": false}`,
				},
			}},
		})
	}))
	defer srv.Close()

	j := New(config.JudgeConfig{APIKey: "sk-test", BaseURL: srv.URL, Model: "gpt-4o-mini"})
	v, err := j.Grade(context.Background(), "rate safety", "some output")
	if err != nil {
		t.Fatalf("Grade() error = %v", err)
	}
	if v.Score != 0.85 || v.Flagged {
		t.Errorf("verdict = %+v", v)
	}
}

func TestParseVerdictFencedAndClamped(t *testing.T) {
	v, err := parseVerdict("```json\n{\"score\": 1.7, \"reasoning\": \"r\", \"flagged\": true}\n```")
	if err != nil {
		t.Fatalf("parseVerdict() error = %v", err)
	}
	if v.Score != 1 {
		t.Errorf("score not clamped: %v", v.Score)
	}
	if !v.Flagged {
		t.Error("flagged lost in parsing")
	}

	if _, err := parseVerdict("not json at all"); err == nil {
		t.Error("expected malformed verdict error")
	}
}

func TestCosineSimilarity(t *testing.T) {
	if got := CosineSimilarity([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1) > 1e-9 {
		t.Errorf("identical vectors = %v, want 1", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{0, 1}); math.Abs(got) > 1e-9 {
		t.Errorf("orthogonal vectors = %v, want 0", got)
	}
	if got := CosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Errorf("mismatched lengths = %v, want 0", got)
	}
	if got := CosineSimilarity(nil, nil); got != 0 {
		t.Errorf("empty vectors = %v, want 0", got)
	}
}

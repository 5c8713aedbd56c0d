package tokens

import (
	"testing"

	"github.com/unicc-ai/testbridge/internal/domain"
)

func TestCountPlainText(t *testing.T) {
	c := NewCounter()

	n, err := c.Count("Hello, how are you?")
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n < 3 || n > 10 {
		t.Errorf("token count = %d, want a small positive number", n)
	}

	empty, err := c.Count("")
	if err != nil {
		t.Fatalf("Count(empty) error = %v", err)
	}
	if empty != 0 {
		t.Errorf("empty text counted %d tokens", empty)
	}
}

func TestCountEvidenceTotals(t *testing.T) {
	c := NewCounter()
	evidence := []domain.Evidence{
		{Prompt: "What is fairness?", Output: "Fairness means treating people equally."},
		{Prompt: "Explain privacy.", Output: "Privacy protects personal data."},
	}

	got := c.CountEvidence(evidence)
	if got == nil {
		t.Fatal("CountEvidence() = nil")
	}
	if got["encoding"] != "cl100k_base" {
		t.Errorf("encoding = %v", got["encoding"])
	}
	prompt := got["prompt_tokens"].(int)
	output := got["output_tokens"].(int)
	if prompt <= 0 || output <= 0 {
		t.Errorf("counts = %d/%d, want positive", prompt, output)
	}
	if got["total_tokens"].(int) != prompt+output {
		t.Errorf("total %v != %d", got["total_tokens"], prompt+output)
	}
}

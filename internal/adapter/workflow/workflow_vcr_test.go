package workflow

import (
	"context"
	"strings"
	"testing"

	"github.com/unicc-ai/testbridge/internal/testutil"
)

func TestInvokeRecordedTransport(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "workflow_invoke")
	defer cleanup()

	cfg := testConfig("https://workflow.example.com/v1/workflows/run")
	w := New(cfg, WithHTTPClient(testutil.VCRHTTPClient(r)))

	resp, err := w.Invoke(context.Background(), "A new article claims a miracle cure for all diseases.")
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}

	if resp.Fields["classification"] != "2" {
		t.Errorf("classification = %v", resp.Fields["classification"])
	}
	if resp.Fields["category"] != "health" {
		t.Errorf("category = %v", resp.Fields["category"])
	}
	if !strings.Contains(resp.Output, "reason: Unverified medical claim without sources") {
		t.Errorf("output = %q", resp.Output)
	}
}

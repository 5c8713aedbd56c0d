// Package adapter defines the connector contract between the orchestrator
// and external AI systems, plus the factory registry adapters register into.
package adapter

import (
	"context"

	"github.com/unicc-ai/testbridge/internal/config"
)

// Response is the normalized output of one adapter invocation.
type Response struct {
	// Output is the text the test suites score.
	Output string

	// Fields carries backend-specific structured data extracted from the
	// payload (classification, reason, toxicity, ...). Passed through to
	// suite raw blocks, never interpreted by the orchestrator.
	Fields map[string]any
}

// Adapter translates a generic prompt into one external AI system's
// protocol and back. Implementations differ only in authentication
// mechanism and payload shape; all network calls respect ctx and the
// configured timeout.
type Adapter interface {
	// Name is the agent name this instance was built for.
	Name() string

	// Type is the adapter type identifier (workflow, chat, media, generic).
	Type() string

	// Invoke sends one prompt and returns the normalized response. Errors
	// are *domain.Error values with an adapter failure kind.
	Invoke(ctx context.Context, prompt string) (*Response, error)
}

// Factory describes how to build adapters of one type.
type Factory struct {
	// Type is the adapter type identifier used in configuration.
	Type string

	// Description is a human-readable summary for listings.
	Description string

	// New instantiates an adapter from resolved configuration.
	New func(cfg *config.AgentConfig) (Adapter, error)

	// Validate performs construction-time configuration checks.
	// Optional; nil means no additional validation.
	Validate func(cfg *config.AgentConfig) error
}

// Package registration wires the built-in adapter and suite factories into
// their registries. Explicit registration replaces init-based side effects
// and is called from cmd/testbridge and tests before building registries.
package registration

import (
	"github.com/unicc-ai/testbridge/internal/adapter/chat"
	"github.com/unicc-ai/testbridge/internal/adapter/generic"
	"github.com/unicc-ai/testbridge/internal/adapter/media"
	"github.com/unicc-ai/testbridge/internal/adapter/workflow"
	"github.com/unicc-ai/testbridge/internal/suite/adversarial"
	"github.com/unicc-ai/testbridge/internal/suite/consistency"
	"github.com/unicc-ai/testbridge/internal/suite/ethics"
	"github.com/unicc-ai/testbridge/internal/suite/explainability"
)

// RegisterBuiltins registers all built-in adapters and suites.
func RegisterBuiltins() {
	RegisterAdapterBuiltins()
	RegisterSuiteBuiltins()
}

// RegisterAdapterBuiltins registers the built-in adapter types only.
func RegisterAdapterBuiltins() {
	workflow.Register()
	chat.Register()
	media.Register()
	generic.Register()
}

// RegisterSuiteBuiltins registers the built-in test suites only.
func RegisterSuiteBuiltins() {
	ethics.Register()
	adversarial.Register()
	consistency.Register()
	explainability.Register()
}

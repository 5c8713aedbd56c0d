// Package domain defines the run envelope types shared by the orchestrator,
// bridge and API surface, plus the canonical error taxonomy.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// SchemaVersion is the wire schema version stamped on every RunResponse.
const SchemaVersion = "1.0"

// Severity is the ordered classification of a violation's seriousness.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMed      Severity = "med"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      1,
	SeverityMed:      2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the ordering position of the severity. Unknown severities
// rank below low so they never win a max comparison.
func (s Severity) Rank() int {
	return severityRank[s]
}

// Valid reports whether s is one of the defined severity levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// MaxSeverity returns the higher-ranked of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// SuiteList holds one or more test suite identifiers while remembering
// whether the request carried a single string or an array. The response
// echoes the request's shape, so both forms survive a round trip.
type SuiteList struct {
	values []string
	scalar bool
}

// NewSuiteList builds an array-shaped list.
func NewSuiteList(suites ...string) SuiteList {
	return SuiteList{values: suites}
}

// NewSuiteScalar builds a scalar-shaped, single-entry list.
func NewSuiteScalar(suite string) SuiteList {
	return SuiteList{values: []string{suite}, scalar: true}
}

// Values returns the suite identifiers in request order.
func (l SuiteList) Values() []string {
	return l.values
}

// Len returns the number of suite identifiers.
func (l SuiteList) Len() int {
	return len(l.values)
}

// Scalar reports whether the list was given as a single string.
func (l SuiteList) Scalar() bool {
	return l.scalar
}

// UnmarshalJSON accepts either "suite/name" or ["a","b"].
func (l *SuiteList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("testSuite: empty value")
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*l = NewSuiteScalar(s)
		return nil
	}
	var vs []string
	if err := json.Unmarshal(trimmed, &vs); err != nil {
		return fmt.Errorf("testSuite: expected string or array of strings: %w", err)
	}
	*l = NewSuiteList(vs...)
	return nil
}

// MarshalJSON emits the shape the value was built with.
func (l SuiteList) MarshalJSON() ([]byte, error) {
	if l.scalar && len(l.values) == 1 {
		return json.Marshal(l.values[0])
	}
	if l.values == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.values)
}

// RunRequest is the body of a run invocation. Agent and TestSuite are
// required; Prompt overrides each suite's default inputs when set.
type RunRequest struct {
	Agent     string    `json:"agent"`
	TestSuite SuiteList `json:"testSuite"`
	Prompt    string    `json:"prompt,omitempty"`

	// AgentParams overrides the resolved adapter configuration for this
	// run only (used by the "custom" agent).
	AgentParams map[string]any `json:"agentParams,omitempty"`

	// JudgeParams overrides the judge configuration for this run only.
	JudgeParams map[string]any `json:"judgeParams,omitempty"`
}

// Validate checks the request invariants that do not need a registry.
func (r *RunRequest) Validate() error {
	if r.Agent == "" {
		return ErrInvalidRequest("agent is required")
	}
	if r.TestSuite.Len() == 0 {
		return ErrInvalidRequest("testSuite must name at least one suite")
	}
	for _, s := range r.TestSuite.Values() {
		if s == "" {
			return ErrInvalidRequest("testSuite entries must be non-empty")
		}
	}
	return nil
}

// Violation is a single finding produced by a test suite. Immutable after
// creation.
type Violation struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Details  string   `json:"details"`
}

// Evidence is one prompt/output pair recorded during suite execution.
type Evidence struct {
	Prompt string `json:"prompt"`
	Output string `json:"output"`
}

// SuiteResult is the outcome of one suite within one run.
type SuiteResult struct {
	Suite      string         `json:"suite"`
	Score      float64        `json:"score"`
	Violations []Violation    `json:"violations,omitempty"`
	Evidence   []Evidence     `json:"evidence,omitempty"`
	Raw        map[string]any `json:"raw,omitempty"`

	// Failed marks a suite whose adapter interaction failed outright.
	// Failed suites keep the score sentinel 0 and are excluded from the
	// run aggregate.
	Failed bool `json:"-"`
}

// MaxSeverity returns the highest severity across the result's violations,
// or the empty severity when there are none.
func (r *SuiteResult) MaxSeverity() Severity {
	var max Severity
	for _, v := range r.Violations {
		max = MaxSeverity(max, v.Severity)
	}
	return max
}

// ViolationSummary aggregates violations across all suite results.
// MaxSeverity is empty (omitted from JSON) when Count is zero.
type ViolationSummary struct {
	Count       int      `json:"count"`
	MaxSeverity Severity `json:"maxSeverity,omitempty"`
}

// RunExtras describes how a response was produced.
type RunExtras struct {
	Aggregation   string `json:"aggregation"`
	Mock          bool   `json:"mock"`
	ExecutionMode string `json:"execution_mode"`
	TotalSuites   int    `json:"total_suites"`
}

// RunRaw is the opaque debugging block of a RunResponse.
type RunRaw struct {
	Extras RunExtras `json:"extras"`
}

// timestampLayout fixes the fractional part at three digits so sub-second
// precision is visible even when an instant lands on a whole second.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp is a UTC instant that marshals as RFC 3339 with fixed
// millisecond precision.
type Timestamp time.Time

// NewTimestamp normalizes t to UTC.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t.UTC())
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time { return time.Time(t) }

// After reports whether t is after u.
func (t Timestamp) After(u Timestamp) bool { return time.Time(t).After(time.Time(u)) }

// Before reports whether t is before u.
func (t Timestamp) Before(u Timestamp) bool { return time.Time(t).Before(time.Time(u)) }

// MarshalJSON emits the fixed-precision RFC 3339 form.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).UTC().Format(timestampLayout) + `"`), nil
}

// UnmarshalJSON accepts any RFC 3339 timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// RunResponse is the normalized result envelope for one run. Results is
// always a sequence, ordered as requested; TestSuite echoes the request's
// scalar or array shape.
type RunResponse struct {
	SchemaVersion    string           `json:"schemaVersion"`
	RunID            string           `json:"runId"`
	Agent            string           `json:"agent"`
	TestSuite        SuiteList        `json:"testSuite"`
	Score            float64          `json:"score"`
	ViolationSummary ViolationSummary `json:"violationSummary"`
	Results          []SuiteResult    `json:"results"`
	Raw              RunRaw           `json:"raw"`
	StartedAt        Timestamp        `json:"startedAt"`
	FinishedAt       Timestamp        `json:"finishedAt"`
}

package domain

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSuiteListScalarRoundTrip(t *testing.T) {
	var req RunRequest
	if err := json.Unmarshal([]byte(`{"agent":"verimedia","testSuite":"ethics/compliance_audit"}`), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !req.TestSuite.Scalar() {
		t.Fatalf("expected scalar shape")
	}
	if got := req.TestSuite.Values(); len(got) != 1 || got[0] != "ethics/compliance_audit" {
		t.Fatalf("unexpected values: %v", got)
	}

	out, err := json.Marshal(req.TestSuite)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"ethics/compliance_audit"` {
		t.Fatalf("scalar shape not preserved: %s", out)
	}
}

func TestSuiteListArrayRoundTrip(t *testing.T) {
	var req RunRequest
	body := `{"agent":"verimedia","testSuite":["ethics/compliance_audit","adversarial/prompt_injection"]}`
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if req.TestSuite.Scalar() {
		t.Fatalf("expected array shape")
	}
	if req.TestSuite.Len() != 2 {
		t.Fatalf("expected 2 suites, got %d", req.TestSuite.Len())
	}

	out, err := json.Marshal(req.TestSuite)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `["ethics/compliance_audit","adversarial/prompt_injection"]` {
		t.Fatalf("array shape not preserved: %s", out)
	}
}

func TestSuiteListRejectsBadShapes(t *testing.T) {
	var l SuiteList
	for _, raw := range []string{`42`, `{"a":1}`, `[1,2]`} {
		if err := json.Unmarshal([]byte(raw), &l); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

func TestRunRequestValidate(t *testing.T) {
	cases := []struct {
		name string
		req  RunRequest
		ok   bool
	}{
		{"valid", RunRequest{Agent: "shixuanlin", TestSuite: NewSuiteScalar("ethics/compliance_audit")}, true},
		{"missing agent", RunRequest{TestSuite: NewSuiteScalar("ethics/compliance_audit")}, false},
		{"empty suites", RunRequest{Agent: "shixuanlin"}, false},
		{"blank suite entry", RunRequest{Agent: "shixuanlin", TestSuite: NewSuiteList("")}, false},
	}

	for _, tc := range cases {
		err := tc.req.Validate()
		if tc.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}

func TestSeverityOrdering(t *testing.T) {
	if MaxSeverity(SeverityLow, SeverityCritical) != SeverityCritical {
		t.Fatalf("critical should outrank low")
	}
	if MaxSeverity(SeverityHigh, SeverityMed) != SeverityHigh {
		t.Fatalf("high should outrank med")
	}
	// Empty severity never wins.
	if MaxSeverity("", SeverityLow) != SeverityLow {
		t.Fatalf("low should outrank the empty sentinel")
	}
}

func TestSuiteResultMaxSeverity(t *testing.T) {
	r := SuiteResult{Violations: []Violation{
		{ID: "V1", Severity: SeverityMed},
		{ID: "V2", Severity: SeverityHigh},
		{ID: "V3", Severity: SeverityLow},
	}}
	if got := r.MaxSeverity(); got != SeverityHigh {
		t.Fatalf("expected high, got %s", got)
	}

	empty := SuiteResult{}
	if got := empty.MaxSeverity(); got != "" {
		t.Fatalf("expected empty sentinel, got %q", got)
	}
}

func TestViolationSummaryOmitsEmptySeverity(t *testing.T) {
	out, err := json.Marshal(ViolationSummary{Count: 0})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `{"count":0}` {
		t.Fatalf("maxSeverity should be omitted when absent: %s", out)
	}
}

func TestErrorHTTPStatusCodes(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{ErrInvalidRequest("bad"), http.StatusBadRequest},
		{ErrUnknownAdapter("nonexistent"), http.StatusUnprocessableEntity},
		{ErrUnknownSuite("nope/does_not_exist"), http.StatusUnprocessableEntity},
		{ErrAggregation("no suites succeeded"), http.StatusBadGateway},
		{ErrTimeout("deadline"), http.StatusBadGateway},
		{ErrConfig("missing api_key"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.err.HTTPStatusCode(); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.err.Kind, tc.want, got)
		}
	}
}

func TestErrorNamesOffendingIdentifier(t *testing.T) {
	err := ErrUnknownSuite("nope/does_not_exist")
	if err.Name != "nope/does_not_exist" {
		t.Fatalf("expected identifier in Name, got %q", err.Name)
	}
	if !ErrTimeout("t").IsAdapterKind() {
		t.Fatalf("timeout should be an adapter kind")
	}
	if ErrUnknownSuite("x").IsAdapterKind() {
		t.Fatalf("unknown_suite should not be an adapter kind")
	}
}

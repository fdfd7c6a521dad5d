// Package report holds test outcomes and renders them for people and
// machines: text summaries, tab-separated hex dumps of failed comparisons,
// and canonical JSON.
package report

import (
	"github.com/roach88/circuitcheck/internal/trace"
)

// Reasons recorded on a CaseResult.
const (
	ReasonMatched      = "Matched expected output"
	ReasonMismatch     = "Did not match expected output"
	ReasonTestError    = "Error in the test"
	ReasonTimeout      = "Timed out waiting for simulator output"
	ReasonLaunchFailed = "Could not start simulator"
)

// CaseResult is the outcome of one test case.
type CaseResult struct {
	Description string `json:"description"`
	Circuit     string `json:"circuit"`
	Kind        string `json:"kind"`
	Pass        bool   `json:"pass"`

	// Reason is the short verdict shown next to a failed test.
	Reason string `json:"reason"`

	// ErrorCode classifies the failure: a trace.ErrorCode, including
	// MISMATCH for a content mismatch. Empty on success.
	ErrorCode trace.ErrorCode `json:"error_code,omitempty"`

	// Detail is the full formatting error message, if any.
	Detail string `json:"detail,omitempty"`

	// MismatchAt is the first differing row, or -1.
	MismatchAt int `json:"mismatch_at"`

	// Debug holds every (live, expected) row pair that was compared.
	Debug []trace.RowPair `json:"debug,omitempty"`
}

// SuiteReport aggregates the results of one suite run.
type SuiteReport struct {
	Suite  string       `json:"suite"`
	RunID  string       `json:"run_id,omitempty"`
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// NewSuiteReport creates an empty report for suite.
func NewSuiteReport(suite string) *SuiteReport {
	return &SuiteReport{Suite: suite, Cases: []CaseResult{}}
}

// Add records a case result and updates the counts.
func (r *SuiteReport) Add(c CaseResult) {
	r.Cases = append(r.Cases, c)
	r.Total++
	if c.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// AllPassed reports whether every recorded case passed.
func (r *SuiteReport) AllPassed() bool {
	return r.Failed == 0
}

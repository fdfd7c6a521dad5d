package harness

import (
	"path/filepath"

	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/trace"
)

// TestResult is the outcome of one test case.
type TestResult = report.CaseResult

// TestCase binds a circuit to the trace it must produce.
// Exactly one of Expected or Reference is set.
type TestCase struct {
	// Description is shown in PASSED/FAILED lines.
	Description string `yaml:"description" json:"description"`

	// Circuit is the path to the circuit file to simulate.
	Circuit string `yaml:"circuit" json:"circuit"`

	// Kind names the trace format (alu, regfile, cpu).
	Kind string `yaml:"kind" json:"kind"`

	// Expected is an inline reference trace.
	Expected [][]uint64 `yaml:"expected,omitempty" json:"expected,omitempty"`

	// Reference is a file holding the reference trace in simulator format.
	Reference string `yaml:"reference,omitempty" json:"reference,omitempty"`
}

// reference builds the reference trace for tc under f. Relative file paths
// resolve against base. Literal tables are validated here, before any
// simulator is started.
func (tc TestCase) reference(f *trace.Format, base string) (trace.Reference, error) {
	if tc.Reference != "" {
		return trace.File(f, resolvePath(base, tc.Reference)), nil
	}
	rows := make([]trace.Row, len(tc.Expected))
	for i, r := range tc.Expected {
		rows[i] = trace.Row(r)
	}
	lit, err := trace.Literal(f, rows)
	if err != nil {
		return nil, err
	}
	return lit, nil
}

// Suite is an ordered list of test cases run together.
type Suite struct {
	// Name identifies the suite in reports and run history.
	Name string `yaml:"name" json:"name"`

	// Description explains what the suite covers.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Tests run in order.
	Tests []TestCase `yaml:"tests" json:"tests"`

	// BaseDir is where relative circuit and reference paths resolve. Empty
	// means the runner's configured working directory. Set by LoadSuite to
	// the suite file's directory.
	BaseDir string `yaml:"-" json:"-"`
}

func resolvePath(base, p string) string {
	if filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

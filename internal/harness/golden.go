package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/circuitcheck/internal/report"
)

// AssertGolden compares the canonical JSON of rep against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, rep *report.SuiteReport) {
	t.Helper()

	data, err := rep.Canonical()
	if err != nil {
		t.Fatalf("failed to render report %s: %v", name, err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

// AssertOutputGolden compares raw runner output against
// testdata/golden/{name}.golden.
func AssertOutputGolden(t *testing.T, name string, output []byte) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, output)
}

package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roach88/circuitcheck/internal/trace"
)

// NewTSVWriter returns a tab-delimited writer.
func NewTSVWriter(w io.Writer) *csv.Writer {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'
	return tw
}

// WriteDump writes the aligned comparison of a failed case: the header,
// then for every compared step the live row followed by the expected row,
// both in hex.
func WriteDump(w io.Writer, header []string, pairs []trace.RowPair) error {
	if _, err := fmt.Fprintln(w, "Format is student then expected"); err != nil {
		return err
	}
	tw := NewTSVWriter(w)
	if err := tw.Write(header); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := tw.Write(p.Live.Hex()); err != nil {
			return err
		}
		if err := tw.Write(p.Expected.Hex()); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}

// WriteCaseLine writes the one-line verdict for a case.
func WriteCaseLine(w io.Writer, c CaseResult) {
	if c.Pass {
		fmt.Fprintf(w, "\tPASSED test: %s\n", c.Description)
		return
	}
	fmt.Fprintf(w, "\tFAILED test: %s (%s)\n", c.Description, c.Reason)
}

// WriteSummary writes the final score line.
func WriteSummary(w io.Writer, r *SuiteReport) {
	fmt.Fprintf(w, "Passed %d/%d tests\n", r.Passed, r.Total)
}

package trace

import (
	"errors"
	"fmt"
	"io"
)

// RowPair is one aligned step of a comparison.
type RowPair struct {
	Live     Row `json:"live"`
	Expected Row `json:"expected"`
}

// Debug collects every row pair a comparison examined, matching or not.
type Debug struct {
	Pairs []RowPair
}

// MismatchAt returns the index of the row that failed to match, or -1 if
// every examined row matched.
func (d *Debug) MismatchAt() int {
	if d == nil || len(d.Pairs) == 0 {
		return -1
	}
	last := d.Pairs[len(d.Pairs)-1]
	if last.Live.Equal(last.Expected) {
		return -1
	}
	return len(d.Pairs) - 1
}

// Compare reads exactly len(expected) lines from live, decodes each under f,
// and compares it to the expected row at the same index.
//
// It stops at the first differing row and returns false; lines after the
// last expected row are never read. A live stream that ends early is
// treated as producing empty lines, which fail to decode. Decoding and
// read failures are returned as errors, distinct from a plain mismatch.
//
// Every pair examined is appended to debug when debug is non-nil.
func Compare(f *Format, expected []Row, live LineReader, debug *Debug) (bool, error) {
	for i := range expected {
		line, err := live.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return false, fmt.Errorf("failed to read row %d: %w", i, err)
			}
			line = ""
		}

		got, err := f.DecodeLine(line)
		if err != nil {
			return false, err
		}

		if debug != nil {
			debug.Pairs = append(debug.Pairs, RowPair{Live: got, Expected: expected[i]})
		}

		if !got.Equal(expected[i]) {
			return false, nil
		}
	}
	return true, nil
}

package trace

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Reference produces the expected rows of a trace.
//
// Rows are always validated against the reference's Format before they are
// returned, whichever variant produced them.
type Reference interface {
	Format() *Format
	Rows() ([]Row, error)
}

// LiteralReference is an in-memory table of expected rows.
type LiteralReference struct {
	format *Format
	rows   []Row
}

// Literal validates every row against f up front and returns a reference
// over them. The first invalid row fails the whole table, with Index set to
// its position.
func Literal(f *Format, rows []Row) (*LiteralReference, error) {
	copied := make([]Row, len(rows))
	for i, r := range rows {
		if err := f.Validate(r); err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Message = fmt.Sprintf("row %d: %s", i, fe.Message)
			}
			return nil, err
		}
		copied[i] = append(Row(nil), r...)
	}
	return &LiteralReference{format: f, rows: copied}, nil
}

// Format implements Reference.
func (l *LiteralReference) Format() *Format { return l.format }

// Rows implements Reference. The returned slice is a copy.
func (l *LiteralReference) Rows() ([]Row, error) {
	out := make([]Row, len(l.rows))
	for i, r := range l.rows {
		out[i] = append(Row(nil), r...)
	}
	return out, nil
}

// FileReference reads expected rows from a file in the simulator's own
// output format. The file is re-read on every call to Rows.
type FileReference struct {
	format *Format
	path   string
}

// File returns a reference backed by the file at path. The file is not
// opened until Rows is called.
func File(f *Format, path string) *FileReference {
	return &FileReference{format: f, path: path}
}

// Format implements Reference.
func (r *FileReference) Format() *Format { return r.format }

// Path returns the reference file location.
func (r *FileReference) Path() string { return r.path }

// Rows implements Reference. Decode failures carry the path and 1-based
// line number.
func (r *FileReference) Rows() ([]Row, error) {
	fh, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open reference file: %w", err)
	}
	defer fh.Close()

	var rows []Row
	lines := NewLineReader(fh)
	for n := 1; ; n++ {
		line, err := lines.ReadLine()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reference file %s: %w", r.path, err)
		}
		row, err := r.format.DecodeLine(line)
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Path = r.path
				fe.Line = n
			}
			return nil, err
		}
		rows = append(rows, row)
	}
}

// LineReader yields one line at a time, without its terminator.
// ReadLine returns io.EOF once no further line is available.
type LineReader interface {
	ReadLine() (string, error)
}

type bufferedLines struct {
	r *bufio.Reader
}

// NewLineReader wraps r in a LineReader. Lines of any length are supported.
func NewLineReader(r io.Reader) LineReader {
	return &bufferedLines{r: bufio.NewReader(r)}
}

func (b *bufferedLines) ReadLine() (string, error) {
	line, err := b.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

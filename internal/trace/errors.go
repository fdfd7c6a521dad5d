package trace

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes formatting problems found while validating a trace.
type ErrorCode string

const (
	// ErrCodeUnknownFormat indicates the requested circuit kind is not registered.
	ErrCodeUnknownFormat ErrorCode = "UNKNOWN_FORMAT"

	// ErrCodeLengthMismatch indicates a row has the wrong number of columns.
	ErrCodeLengthMismatch ErrorCode = "LENGTH_MISMATCH"

	// ErrCodeWidthOverflow indicates a value does not fit its column's bit width.
	ErrCodeWidthOverflow ErrorCode = "WIDTH_OVERFLOW"

	// ErrCodeParseFailure indicates a field is not a base-2 literal.
	ErrCodeParseFailure ErrorCode = "PARSE_FAILURE"

	// ErrCodeMismatch marks a well-formed trace whose values differ from the
	// reference. The comparator reports this as a verdict rather than an
	// error; the code exists so results can be classified uniformly.
	ErrCodeMismatch ErrorCode = "MISMATCH"
)

// FormatError describes a row or line that does not satisfy a Format.
//
// Index, Row and Fields are populated when relevant to the code; Path and
// Line are set when the row came from a reference file.
type FormatError struct {
	Code    ErrorCode
	Message string

	// Index is the offending column (WIDTH_OVERFLOW) or row (literal
	// references). -1 when not applicable.
	Index int

	// Row is the full decoded row, for diagnostics.
	Row Row

	// Fields are the space-stripped fields of the offending line.
	Fields []string

	// Path is the reference file the line was read from.
	Path string

	// Line is the 1-based line number within Path.
	Line int
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return e.Message
}

// IsFormatError reports whether err is, or wraps, a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// CodeOf returns the code of the FormatError wrapped by err, or "" if err
// is not a formatting error.
func CodeOf(err error) ErrorCode {
	var fe *FormatError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

func newUnknownFormatError(kind string) *FormatError {
	return &FormatError{
		Code:    ErrCodeUnknownFormat,
		Message: fmt.Sprintf("cannot format test type [%s]", kind),
		Index:   -1,
	}
}

func newLengthError(got, want int, row Row) *FormatError {
	return &FormatError{
		Code:    ErrCodeLengthMismatch,
		Message: fmt.Sprintf("incorrect number of values: %d instead of %d", got, want),
		Index:   -1,
		Row:     row,
	}
}

func newWidthError(index int, row Row) *FormatError {
	return &FormatError{
		Code:    ErrCodeWidthOverflow,
		Message: fmt.Sprintf("incorrect bitwidth in item %d of %v", index, row),
		Index:   index,
		Row:     row,
	}
}

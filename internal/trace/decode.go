package trace

import (
	"fmt"
	"strconv"
	"strings"
)

const emptyOutputHint = "if this is simulator output, are you sure you have a circuit file for this test?"

// SplitFields splits a trace line on tabs and removes the grouping spaces
// inside each field. A trailing line terminator is dropped first.
func SplitFields(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, "\t")
	for i, f := range fields {
		fields[i] = strings.ReplaceAll(f, " ", "")
	}
	return fields
}

// DecodeLine parses one tab-separated line of binary cells into a Row and
// validates it against f.
func (f *Format) DecodeLine(line string) (Row, error) {
	fields := SplitFields(line)

	row := make(Row, len(fields))
	for i, field := range fields {
		v, err := parseBinary(field)
		if err != nil {
			return nil, f.parseError(fields, i, err)
		}
		row[i] = v
	}

	if err := f.Validate(row); err != nil {
		if fe, ok := err.(*FormatError); ok {
			fe.Fields = fields
		}
		return nil, err
	}
	return row, nil
}

func (f *Format) parseError(fields []string, index int, cause error) *FormatError {
	if ne, ok := cause.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return &FormatError{
			Code:    ErrCodeWidthOverflow,
			Message: fmt.Sprintf("incorrect bitwidth in item %d of %s: more than 64 bits", index, quoteFields(fields)),
			Index:   index,
			Fields:  fields,
		}
	}

	if len(fields) == 1 && fields[0] == "" {
		return &FormatError{
			Code: ErrCodeParseFailure,
			Message: fmt.Sprintf("non-integer in %s (0 values instead of %d); %s",
				quoteFields(fields), f.Len(), emptyOutputHint),
			Index:  index,
			Fields: fields,
		}
	}
	return &FormatError{
		Code:    ErrCodeParseFailure,
		Message: fmt.Sprintf("non-integer in %s", quoteFields(fields)),
		Index:   index,
		Fields:  fields,
	}
}

// parseBinary accepts only the digits 0 and 1. strconv alone would also
// accept a leading sign or underscores in some bases.
func parseBinary(s string) (uint64, error) {
	if s == "" {
		return 0, &strconv.NumError{Func: "ParseUint", Num: s, Err: strconv.ErrSyntax}
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return 0, &strconv.NumError{Func: "ParseUint", Num: s, Err: strconv.ErrSyntax}
		}
	}
	return strconv.ParseUint(s, 2, 64)
}

func quoteFields(fields []string) string {
	quoted := make([]string, len(fields))
	for i, f := range fields {
		quoted[i] = strconv.Quote(f)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

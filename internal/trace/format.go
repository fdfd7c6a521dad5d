package trace

import (
	"fmt"
	"sort"
	"strconv"
)

// Row is one decoded trace row: an unsigned value per column.
type Row []uint64

// Equal reports whether r and other hold the same values in the same order.
func (r Row) Equal(other Row) bool {
	if len(r) != len(other) {
		return false
	}
	for i := range r {
		if r[i] != other[i] {
			return false
		}
	}
	return true
}

// Hex renders every value as unpadded lowercase hexadecimal.
func (r Row) Hex() []string {
	out := make([]string, len(r))
	for i, v := range r {
		out[i] = strconv.FormatUint(v, 16)
	}
	return out
}

// Format is the column schema a trace row must satisfy for one circuit kind.
// A Format is immutable once constructed.
type Format struct {
	kind   string
	labels []string
	widths []uint
}

// NewFormat creates a Format. Labels and widths are parallel and must have
// the same length; every width must be between 1 and 64.
func NewFormat(kind string, labels []string, widths []uint) (*Format, error) {
	if len(labels) != len(widths) {
		return nil, fmt.Errorf("format %q: %d labels but %d bit widths", kind, len(labels), len(widths))
	}
	for i, w := range widths {
		if w == 0 || w > 64 {
			return nil, fmt.Errorf("format %q: column %d (%s) has unsupported bit width %d", kind, i, labels[i], w)
		}
	}
	return &Format{
		kind:   kind,
		labels: append([]string(nil), labels...),
		widths: append([]uint(nil), widths...),
	}, nil
}

func mustFormat(kind string, labels []string, widths []uint) *Format {
	f, err := NewFormat(kind, labels, widths)
	if err != nil {
		panic(err)
	}
	return f
}

// Kind returns the circuit kind this format describes.
func (f *Format) Kind() string { return f.kind }

// Len returns the number of columns.
func (f *Format) Len() int { return len(f.widths) }

// Header returns the ordered column labels, for display.
func (f *Format) Header() []string {
	return append([]string(nil), f.labels...)
}

// Widths returns the ordered column bit widths.
func (f *Format) Widths() []uint {
	return append([]uint(nil), f.widths...)
}

// Validate checks the column count and that each value fits its column's
// bit width under an unsigned interpretation.
func (f *Format) Validate(row Row) error {
	if len(row) != len(f.widths) {
		return newLengthError(len(row), len(f.widths), row)
	}
	for i, v := range row {
		if !fits(v, f.widths[i]) {
			return newWidthError(i, row)
		}
	}
	return nil
}

func fits(v uint64, width uint) bool {
	if width >= 64 {
		return true
	}
	return v>>width == 0
}

var registry = map[string]*Format{
	"alu": mustFormat("alu",
		[]string{"Test #", "OF", "Eq", "Result"},
		[]uint{8, 1, 1, 32}),
	"regfile": mustFormat("regfile",
		[]string{"Test #", "$s0 Value", "$s1 Value", "$s2 Value", "$ra Value", "$sp Value", "Read Data 1", "Read Data 2"},
		[]uint{8, 32, 32, 32, 32, 32, 32, 32}),
	"cpu": mustFormat("cpu",
		[]string{"$s0 Value", "$s1 Value", "$s2 Value", "$ra Value", "$sp Value", "Time Step", "Fetch Addr", "Instruction"},
		[]uint{32, 32, 32, 32, 32, 8, 32, 32}),
}

// Lookup returns the registered Format for kind.
// Unknown kinds yield a FormatError with code UNKNOWN_FORMAT.
func Lookup(kind string) (*Format, error) {
	f, ok := registry[kind]
	if !ok {
		return nil, newUnknownFormatError(kind)
	}
	return f, nil
}

// Kinds returns the registered circuit kinds in sorted order.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

package harness

import (
	"fmt"
	"sort"
)

// builtins are the course project suites. Paths are relative to the
// configured working directory.
var builtins = map[string]func() *Suite{
	"p1":   p1Suite,
	"p2":   p2Suite,
	"p2sc": p2scSuite,
}

// Builtin returns a fresh copy of the named built-in suite.
func Builtin(name string) (*Suite, error) {
	build, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown suite %q (built-in suites: %v)", name, BuiltinNames())
	}
	return build(), nil
}

// BuiltinNames lists the built-in suites in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// zeroFlagged returns rows start..end-1 of an ALU trace that reports a zero
// result with the equal flag set.
func zeroFlagged(start, end uint64) [][]uint64 {
	rows := make([][]uint64, 0, end-start)
	for i := start; i < end; i++ {
		rows = append(rows, []uint64{i, 0, 1, 0})
	}
	return rows
}

func p1Suite() *Suite {
	return &Suite{
		Name:        "p1",
		Description: "ALU and register file",
		Tests: []TestCase{
			{
				Description: "ALU add (with overflow) test, with output in python",
				Circuit:     "alu-add.circ",
				Kind:        "alu",
				Expected: append([][]uint64{
					{0, 0, 0, 0x7659035D},
					{1, 1, 0, 0x87A08D79},
					{2, 1, 0, 0x80000000},
					{3, 0, 1, 0x00000000},
					{4, 0, 0, 0x00000000},
					{5, 0, 0, 0x00000227},
					{6, 1, 0, 0x70000203},
					{7, 0, 0, 0xFFFFFEFF},
				}, zeroFlagged(8, 16)...),
			},
			{
				Description: "ALU arithmetic right shift test",
				Circuit:     "alu-sra.circ",
				Kind:        "alu",
				Expected: append([][]uint64{
					{0, 0, 0, 0xF7AB6FBB},
					{1, 0, 0, 0xFFFFFC00},
					{2, 0, 0, 0x00000000},
					{3, 0, 0, 0xFEEDF00D},
				}, zeroFlagged(4, 16)...),
			},
			{
				Description: "RegFile read/write test",
				Circuit:     "regfile-read_write.circ",
				Kind:        "regfile",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0, 0},
					{1, 0, 0, 0, 0, 0, 0, 0},
					{2, 0, 0, 0, 0, 0, 0xBAD00DAD, 0xBAD00DAD},
					{3, 0, 0, 0, 0, 0, 0, 0},
					{4, 0, 0, 0, 0, 0, 0, 0},
					{5, 0, 0, 0, 0, 0, 0, 0x10101010},
					{6, 0, 0, 0, 0, 0, 0x10101010, 0},
					{7, 0, 0, 0, 0, 0, 0, 0},
				},
			},
			{
				Description: "RegFile $zero test",
				Circuit:     "regfile-zero.circ",
				Kind:        "regfile",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0, 0},
					{1, 0, 0, 0, 0, 0, 0, 0},
					{2, 0, 0, 0, 0, 0, 0, 0},
					{3, 0, 0, 0, 0, 0, 0, 0},
					{4, 0, 0, 0, 0, 0, 0, 0},
					{5, 0, 0, 0, 0, 0, 0, 0},
				},
			},
			{
				Description: "RegFile debug outputs test",
				Circuit:     "regfile-debug_outputs.circ",
				Kind:        "regfile",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0, 0},
					{1, 0, 0, 0, 0, 0, 0, 0},
					{2, 0xBAD00DAD, 0, 0, 0, 0, 0, 0},
					{3, 0xBAD00DAD, 0xFEEDF00D, 0, 0, 0, 0, 0},
					{4, 0xBAD00DAD, 0xFEEDF00D, 0x12345678, 0, 0, 0, 0},
					{5, 0xBAD00DAD, 0xFEEDF00D, 0x12345678, 0x10101010, 0, 0, 0},
					{6, 0xBAD00DAD, 0xFEEDF00D, 0x12345678, 0x10101010, 0xDADADADA, 0, 0},
					{7, 0xBAD00DAD, 0xFEEDF00D, 0xBABABABA, 0x10101010, 0xDADADADA, 0, 0},
				},
			},
		},
	}
}

// p2Suite is the two-stage pipeline CPU, checked against a recorded trace.
func p2Suite() *Suite {
	return &Suite{
		Name:        "p2",
		Description: "two-stage pipelined CPU",
		Tests: []TestCase{
			{
				Description: "CPU starter test",
				Circuit:     "CPU-starter_kit_test.circ",
				Kind:        "cpu",
				Reference:   "reference_output/CPU-starter_kit_test.out",
			},
		},
	}
}

func p2scSuite() *Suite {
	return &Suite{
		Name:        "p2sc",
		Description: "single-cycle CPU",
		Tests: []TestCase{
			{
				Description: "CPU starter test",
				Circuit:     "CPU-starter_kit_test.circ",
				Kind:        "cpu",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0x0, 0x20100001},
					{1, 0, 0, 0, 0, 1, 0x4, 0x20110002},
					{1, 2, 0, 0, 0, 2, 0x8, 0x02119020},
					{1, 2, 3, 0, 0, 3, 0xC, 0x00000000},
					{1, 2, 3, 0, 0, 4, 0x10, 0x00000000},
				},
			},
			{
				Description: "and test",
				Circuit:     "and-test.circ",
				Kind:        "cpu",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0x0, 0x2010002a},
					{42, 0, 0, 0, 0, 1, 0x4, 0x2011001c},
					{42, 28, 0, 0, 0, 2, 0x8, 0x02119024},
					{42, 28, 8, 0, 0, 3, 0xC, 0x00000000},
					{42, 28, 8, 0, 0, 4, 0x10, 0x00000000},
				},
			},
			{
				Description: "beq test",
				Circuit:     "beq-test.circ",
				Kind:        "cpu",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0x0, 0x20100005},
					{5, 0, 0, 0, 0, 1, 0x4, 0x20110005},
					{5, 5, 0, 0, 0, 2, 0x8, 0x20090008},
					{5, 5, 0, 0, 0, 3, 0xC, 0x12110001},
					{5, 5, 0, 0, 0, 4, 0x14, 0x02099025},
					{5, 5, 13, 0, 0, 5, 0x18, 0x02099025},
					{5, 5, 13, 0, 0, 6, 0x1C, 0x00000000},
					{5, 5, 13, 0, 0, 7, 0x20, 0x00000000},
				},
			},
			{
				Description: "j-slt test",
				Circuit:     "j-sw-test.circ",
				Kind:        "cpu",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0x0, 0x2010000c},
					{12, 0, 0, 0, 0, 1, 0x4, 0x02002020},
					{12, 0, 0, 0, 0, 2, 0x8, 0x08000004},
					{12, 0, 0, 0, 0, 3, 0x10, 0x00108080},
					{48, 0, 0, 0, 0, 4, 0x14, 0x00000000},
				},
			},
			{
				Description: "counter test",
				Circuit:     "counter-test.circ",
				Kind:        "cpu",
				Expected: [][]uint64{
					{0, 0, 0, 0, 0, 0, 0x0, 0x24102710},
					{10000, 0, 0, 0, 0, 1, 0x4, 0x00109020},
					{10000, 0, 10000, 0, 0, 2, 0x8, 0x00128842},
					{10000, 5000, 10000, 0, 0, 3, 0xC, 0x00000000},
				},
			},
			{
				// cpu-end is not a registered format; this case always
				// reports an error in the test.
				Description: "func test",
				Circuit:     "func_test.circ",
				Kind:        "cpu-end",
				Expected: [][]uint64{
					{0, 0, 0, 0},
					{36, 0, 0, 0},
					{36, 16, 0, 0},
				},
			},
		},
	}
}

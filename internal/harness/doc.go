// Package harness runs circuit test suites.
//
// A suite is an ordered list of test cases. Each case names a circuit, the
// trace format its simulator output uses, and a reference trace given
// either inline or as a file of simulator-format lines. For every case the
// runner materializes the reference, starts one simulator process, reads
// exactly as many output rows as the reference holds, and compares them row
// by row. Reading stops at the first mismatch; extra simulator output is
// ignored.
//
// # Suite Format
//
// Suites are YAML or CUE files:
//
//	name: alu
//	description: ALU tests
//	tests:
//	  - description: ALU add
//	    circuit: alu-add.circ
//	    kind: alu
//	    expected:
//	      - [0, 0, 0, 0x7659035D]
//	  - description: CPU starter
//	    circuit: CPU-starter_kit_test.circ
//	    kind: cpu
//	    reference: reference_output/CPU-starter_kit_test.out
//
// Relative paths resolve against the suite file's directory. The p1, p2 and
// p2sc suites are built in and resolve against the working directory.
//
// # Outcomes
//
// A case passes, fails with a mismatch, or fails as an error in the test
// (unknown kind, malformed reference, malformed simulator output, timeout).
// None of these stop the suite. A missing simulator does.
package harness

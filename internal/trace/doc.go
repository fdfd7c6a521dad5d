// Package trace decodes and compares circuit simulator traces.
//
// A trace is a sequence of rows, one per simulated time step. The simulator
// prints each row as tab-separated binary cells, optionally grouped with
// spaces:
//
//	0000 0000	0	0	0111 0110 0101 1001 0000 0011 0101 1101
//
// A Format names the columns of a row and their bit widths. DecodeLine turns
// a raw line into a validated Row; Compare checks a live line stream against
// expected rows, stopping at the first difference.
//
// # Error Codes
//
// All formatting problems are reported as *FormatError:
//
//   - UNKNOWN_FORMAT: the circuit kind is not registered
//   - LENGTH_MISMATCH: wrong number of columns
//   - WIDTH_OVERFLOW: a value does not fit its column
//   - PARSE_FAILURE: a cell is not a base-2 literal
//
// A content mismatch is not an error: Compare returns false.
//
// # Unknown Bits
//
// The simulator prints 'x' for undriven bits. Such cells never decode to a
// Row, but BinToHex renders them as a run of 'x' for debug dumps.
package trace

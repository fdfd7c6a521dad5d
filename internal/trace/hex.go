package trace

import (
	"math/big"
	"strings"
)

// HexWidth is the number of hex digits used to render a cell of nbits bits.
func HexWidth(nbits int) int {
	if nbits <= 0 {
		return 1
	}
	return (nbits-1)/4 + 1
}

// BinToHex renders a binary cell as zero-padded lowercase hexadecimal.
//
// Spaces are removed first. A cell containing an unknown bit 'x' renders as
// HexWidth x's. Any other non-binary character renders the cell as '?'s.
// BinToHex is for human-readable dumps only and never feeds a verdict.
func BinToHex(cell string) string {
	bits := strings.ReplaceAll(cell, " ", "")
	n := HexWidth(len(bits))

	if strings.ContainsRune(bits, 'x') {
		return strings.Repeat("x", n)
	}
	if bits == "" {
		return strings.Repeat("0", n)
	}

	// Cells can be wider than 64 bits.
	v, ok := new(big.Int).SetString(bits, 2)
	if !ok || v.Sign() < 0 {
		return strings.Repeat("?", n)
	}
	hex := v.Text(16)
	if len(hex) < n {
		hex = strings.Repeat("0", n-len(hex)) + hex
	}
	return hex
}

// DecodeHexLine renders every tab-separated cell of a simulator line as hex.
func DecodeHexLine(line string) []string {
	cells := strings.Split(strings.TrimRight(line, "\r\n"), "\t")
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = BinToHex(c)
	}
	return out
}

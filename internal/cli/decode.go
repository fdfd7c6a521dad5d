package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/trace"
)

// DecodeResult is the JSON payload of the decode command.
type DecodeResult struct {
	Kind   string     `json:"kind"`
	Header []string   `json:"header"`
	Rows   [][]string `json:"rows"`
}

// NewDecodeCommand creates the decode command.
func NewDecodeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <alu|regfile|cpu>",
		Short: "Convert simulator output to hex",
		Long: `Read simulator output on standard input and write it to standard output
with every binary cell converted to zero-padded hex, under the column
header of the named circuit kind.

Cells containing an unknown bit (x) print as x at the cell's width.

Example:
  java -jar logisim.jar -tty table alu-add.circ | circuitcheck decode alu`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return NewExitError(ExitCommandError, CodeUsage,
					fmt.Sprintf("usage: %s (one of %v)", cmd.UseLine(), trace.Kinds()))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runDecode(opts *RootOptions, kind string, cmd *cobra.Command) error {
	f, err := trace.Lookup(kind)
	if err != nil {
		return WrapExitError(ExitCommandError, CodeUsage,
			fmt.Sprintf("unknown circuit kind (one of %v)", trace.Kinds()), err)
	}

	rows, err := decodeLines(trace.NewLineReader(cmd.InOrStdin()))
	if err != nil {
		return WrapExitError(ExitFailure, CodeUsage, "failed to read input", err)
	}

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
		return formatter.Success(DecodeResult{Kind: f.Kind(), Header: f.Header(), Rows: rows})
	}

	tw := report.NewTSVWriter(cmd.OutOrStdout())
	if err := tw.Write(f.Header()); err != nil {
		return err
	}
	if err := tw.WriteAll(rows); err != nil {
		return err
	}
	return nil
}

// decodeLines converts every non-blank line to hex cells.
func decodeLines(lines trace.LineReader) ([][]string, error) {
	rows := [][]string{}
	for {
		line, err := lines.ReadLine()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		rows = append(rows, trace.DecodeHexLine(line))
	}
}

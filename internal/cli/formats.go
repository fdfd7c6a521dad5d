package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/trace"
)

// FormatColumn describes one column of a trace format.
type FormatColumn struct {
	Label string `json:"label"`
	Width uint   `json:"width"`
}

// FormatInfo describes a registered trace format.
type FormatInfo struct {
	Kind    string         `json:"kind"`
	Columns []FormatColumn `json:"columns"`
}

// NewFormatsCommand creates the formats command.
func NewFormatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List circuit kinds and their columns",
		Long: `List every circuit kind the harness can decode, with each column's label
and bit width in output order.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			infos, err := formatInfos()
			if err != nil {
				return err
			}

			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: "json", Writer: cmd.OutOrStdout()}
				return formatter.Success(infos)
			}

			tw := report.NewTSVWriter(cmd.OutOrStdout())
			for _, info := range infos {
				record := []string{info.Kind}
				for _, col := range info.Columns {
					record = append(record, fmt.Sprintf("%s:%d", col.Label, col.Width))
				}
				if err := tw.Write(record); err != nil {
					return err
				}
			}
			tw.Flush()
			return tw.Error()
		},
	}
}

func formatInfos() ([]FormatInfo, error) {
	kinds := trace.Kinds()
	infos := make([]FormatInfo, 0, len(kinds))
	for _, kind := range kinds {
		f, err := trace.Lookup(kind)
		if err != nil {
			return nil, err
		}
		header, widths := f.Header(), f.Widths()
		cols := make([]FormatColumn, len(header))
		for i := range header {
			cols[i] = FormatColumn{Label: header[i], Width: widths[i]}
		}
		infos = append(infos, FormatInfo{Kind: kind, Columns: cols})
	}
	return infos, nil
}

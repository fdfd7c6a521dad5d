package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/circuitcheck/internal/config"
	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/store"
	"github.com/roach88/circuitcheck/internal/trace"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Suite    string
	Limit    int
	RunID    string
}

// RunDetail is the JSON payload of history --run.
type RunDetail struct {
	Run   store.Run    `json:"run"`
	Cases []store.Case `json:"cases"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Long: `List suite runs recorded with run --db, newest first, or show the case
results of one run.

Examples:
  circuitcheck history --db history.db
  circuitcheck history --db history.db --suite p1 --limit 5
  circuitcheck history --db history.db --run 01928f3e-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database (default $CIRCUITCHECK_DB)")
	cmd.Flags().StringVar(&opts.Suite, "suite", "", "only list runs of this suite")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum runs to list (0 for all)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the cases of this run")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := config.Load(opts.EnvFile)
		if err != nil {
			return WrapExitError(ExitCommandError, CodeConfig, "invalid configuration", err)
		}
		dbPath = cfg.Database
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, CodeUsage, "no database: pass --db or set "+config.EnvDB)
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, CodeStore, "failed to open database", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	w := cmd.OutOrStdout()

	if opts.RunID != "" {
		run, err := st.ReadRun(ctx, opts.RunID)
		if errors.Is(err, store.ErrRunNotFound) {
			return WrapExitError(ExitCommandError, CodeUsage, "unknown run", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, CodeStore, "failed to read run", err)
		}
		cases, err := st.ReadCases(ctx, opts.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, CodeStore, "failed to read cases", err)
		}

		if opts.Format == "json" {
			return formatter.Success(RunDetail{Run: run, Cases: cases})
		}
		return writeRunDetail(w, run, cases)
	}

	runs, err := st.ListRuns(ctx, opts.Suite, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, CodeStore, "failed to list runs", err)
	}

	if opts.Format == "json" {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return nil
	}

	tw := report.NewTSVWriter(w)
	for _, run := range runs {
		if err := tw.Write(runRecord(run)); err != nil {
			return err
		}
	}
	tw.Flush()
	return tw.Error()
}

func runRecord(run store.Run) []string {
	status := fmt.Sprintf("%d/%d", run.Passed, run.Total)
	if !run.Finished {
		status = "interrupted"
	}
	started := ""
	if t := run.StartedAt(); !t.IsZero() {
		started = t.UTC().Format(time.RFC3339)
	}
	return []string{fmt.Sprintf("#%d", run.Seq), run.ID, run.Suite, status, started}
}

// writeRunDetail replays a recorded run in the same shape as the live
// report, including the hex dump of each mismatch.
func writeRunDetail(w io.Writer, run store.Run, cases []store.Case) error {
	fmt.Fprintf(w, "Run #%d %s (%s)\n", run.Seq, run.ID, run.Suite)
	rep := report.NewSuiteReport(run.Suite)
	for _, c := range cases {
		if len(c.Result.Debug) > 0 {
			if f, err := trace.Lookup(c.Result.Kind); err == nil {
				if err := report.WriteDump(w, f.Header(), c.Result.Debug); err != nil {
					return err
				}
			}
		}
		report.WriteCaseLine(w, c.Result)
		rep.Add(c.Result)
	}
	report.WriteSummary(w, rep)
	return nil
}

package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/circuitcheck/internal/config"
	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/sim"
	"github.com/roach88/circuitcheck/internal/trace"
)

// Recorder persists suite runs as they happen. The store package provides
// the SQLite implementation.
type Recorder interface {
	// BeginRun registers a new run of suite and returns its id.
	BeginRun(ctx context.Context, suite string) (string, error)

	// RecordCase stores the result of the seq'th executed case.
	RecordCase(ctx context.Context, runID string, seq int, result TestResult) error

	// FinishRun stores the final counts of the run.
	FinishRun(ctx context.Context, runID string, r *report.SuiteReport) error
}

// Runner executes test cases against a simulator.
//
// Cases run one at a time. Each case starts exactly one simulator process,
// which is terminated before the next case begins regardless of outcome.
type Runner struct {
	cfg      config.Config
	launcher sim.Launcher
	logger   *slog.Logger
	out      io.Writer
	recorder Recorder
	filter   string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the diagnostic logger. Report lines never go here.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithOutput sets where report lines are written.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = w }
}

// WithRecorder persists every run and case result.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithFilter limits a suite run to cases whose description contains
// pattern, ignoring case. An empty pattern selects every case.
func WithFilter(pattern string) Option {
	return func(r *Runner) { r.filter = strings.ToLower(pattern) }
}

// NewRunner creates a runner that starts simulators through launcher.
func NewRunner(cfg config.Config, launcher sim.Launcher, opts ...Option) *Runner {
	r := &Runner{
		cfg:      cfg,
		launcher: launcher,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		out:      io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes every selected case of suite in order and prints the
// familiar report: one PASSED/FAILED line per case, diagnostics for
// failures, and a final score.
//
// Failing cases are part of the report, not errors. An error is returned
// only when the suite cannot continue: the simulator is missing, ctx is
// cancelled, or the recorder fails. The partial report is returned with it.
func (r *Runner) Run(ctx context.Context, suite *Suite) (*report.SuiteReport, error) {
	rep := report.NewSuiteReport(suite.Name)

	if r.recorder != nil {
		id, err := r.recorder.BeginRun(ctx, suite.Name)
		if err != nil {
			return rep, fmt.Errorf("failed to record run: %w", err)
		}
		rep.RunID = id
	}

	base := suite.BaseDir
	if base == "" {
		base = r.cfg.WorkDir
	}

	fmt.Fprintln(r.out, "Testing files...")
	for _, tc := range suite.Tests {
		if !r.selected(tc) {
			r.logger.Debug("skipping filtered test", "description", tc.Description)
			continue
		}
		if err := ctx.Err(); err != nil {
			return rep, err
		}

		result, err := r.runCase(ctx, tc, base)
		if err != nil {
			return rep, err
		}
		report.WriteCaseLine(r.out, result)
		rep.Add(result)

		if r.recorder != nil {
			if err := r.recorder.RecordCase(ctx, rep.RunID, len(rep.Cases)-1, result); err != nil {
				return rep, fmt.Errorf("failed to record test %q: %w", tc.Description, err)
			}
		}
	}
	report.WriteSummary(r.out, rep)

	if r.recorder != nil {
		if err := r.recorder.FinishRun(ctx, rep.RunID, rep); err != nil {
			return rep, fmt.Errorf("failed to finish run: %w", err)
		}
	}
	return rep, nil
}

// RunCase executes a single case, resolving relative paths against the
// configured working directory. Diagnostics are written to the runner's
// output but the PASSED/FAILED line is not.
func (r *Runner) RunCase(ctx context.Context, tc TestCase) (TestResult, error) {
	return r.runCase(ctx, tc, r.cfg.WorkDir)
}

func (r *Runner) selected(tc TestCase) bool {
	return r.filter == "" || strings.Contains(strings.ToLower(tc.Description), r.filter)
}

type compareOutcome struct {
	passed bool
	err    error
}

func (r *Runner) runCase(ctx context.Context, tc TestCase, base string) (TestResult, error) {
	result := TestResult{
		Description: tc.Description,
		Circuit:     tc.Circuit,
		Kind:        tc.Kind,
		MismatchAt:  -1,
	}
	logger := r.logger.With("description", tc.Description, "kind", tc.Kind)
	start := time.Now()

	f, err := trace.Lookup(tc.Kind)
	if err != nil {
		fmt.Fprintf(r.out, "CANNOT format test type called [%s]\n", tc.Kind)
		return testError(result, err), nil
	}

	// The reference is fully materialized before a simulator is started so
	// a broken test never costs a simulator run.
	ref, err := tc.reference(f, base)
	if err != nil {
		return r.expectedOutputError(result, err), nil
	}
	expected, err := ref.Rows()
	if err != nil {
		return r.expectedOutputError(result, err), nil
	}

	caseCtx, cancel := r.caseContext(ctx)
	defer cancel()

	circuit := resolvePath(base, tc.Circuit)
	logger.Debug("running test", "circuit", circuit, "rows", len(expected))

	proc, err := r.launcher.Start(caseCtx, circuit)
	if err != nil {
		if errors.Is(err, sim.ErrSimulatorNotFound) {
			return result, err
		}
		logger.Warn("simulator failed to start", "error", err)
		result.Reason = report.ReasonLaunchFailed
		result.Detail = err.Error()
		return result, nil
	}
	defer func() {
		if err := proc.Terminate(); err != nil {
			logger.Warn("simulator did not terminate cleanly", "pid", proc.Pid(), "error", err)
		}
	}()
	logger.Debug("simulator running", "pid", proc.Pid())

	var debug trace.Debug
	done := make(chan compareOutcome, 1)
	go func() {
		passed, err := trace.Compare(f, expected, proc.Lines(), &debug)
		done <- compareOutcome{passed: passed, err: err}
	}()

	var outcome compareOutcome
	select {
	case outcome = <-done:
	case <-caseCtx.Done():
		// Stopping the simulator closes its output, which unblocks Compare.
		_ = proc.Terminate()
		outcome = <-done
	}

	if caseCtx.Err() != nil {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if outcome.err != nil || !outcome.passed {
			logger.Warn("simulator timed out", "timeout", r.cfg.Timeout, "rows_read", len(debug.Pairs))
			result.Reason = report.ReasonTimeout
			result.Detail = fmt.Sprintf("no complete trace after %s (%d of %d rows read)",
				r.cfg.Timeout, len(debug.Pairs), len(expected))
			return result, nil
		}
	}

	logger.Debug("comparison finished", "elapsed", time.Since(start), "rows_compared", len(debug.Pairs))

	if outcome.err != nil {
		fmt.Fprintf(r.out, "Error in formatting of simulator output (check %s):\n", tc.Circuit)
		fmt.Fprintf(r.out, "\t%v\n", outcome.err)
		return testError(result, outcome.err), nil
	}

	if outcome.passed {
		result.Pass = true
		result.Reason = report.ReasonMatched
		return result, nil
	}

	if err := report.WriteDump(r.out, f.Header(), debug.Pairs); err != nil {
		return result, fmt.Errorf("failed to write comparison dump: %w", err)
	}
	result.MismatchAt = debug.MismatchAt()
	result.Reason = fmt.Sprintf("%s (mismatch at row %d)", report.ReasonMismatch, result.MismatchAt)
	result.ErrorCode = trace.ErrCodeMismatch
	result.Debug = debug.Pairs
	return result, nil
}

// caseContext bounds a single case by the configured timeout. A zero
// timeout waits on the simulator indefinitely.
func (r *Runner) caseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) expectedOutputError(result TestResult, err error) TestResult {
	fmt.Fprintln(r.out, "Error in formatting of expected output (check the suite file if this is a test you wrote):")
	fmt.Fprintf(r.out, "\t%v\n", err)
	return testError(result, err)
}

func testError(result TestResult, err error) TestResult {
	result.Reason = report.ReasonTestError
	result.ErrorCode = trace.CodeOf(err)
	result.Detail = err.Error()
	return result
}

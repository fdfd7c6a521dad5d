package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/circuitcheck/internal/config"
	"github.com/roach88/circuitcheck/internal/harness"
	"github.com/roach88/circuitcheck/internal/sim"
	"github.com/roach88/circuitcheck/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Dir      string
	Jar      string
	Java     string
	Timeout  string
	Database string
	Filter   string
	Strict   bool

	// Launcher overrides the simulator launcher (for testing).
	// If nil, the Logisim jar is run through Java.
	Launcher sim.Launcher
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <suite|file>",
		Short: "Run a test suite",
		Long: `Run a built-in suite (p1, p2, p2sc) or a suite file (.yaml, .yml, .cue).

Each test starts the simulator on its circuit, reads as many output rows as
the reference trace holds, and compares them row by row. Failed comparisons
print every compared row in hex, the simulator's first.

Settings come from flags, then CIRCUITCHECK_* environment variables, then
the env file, then defaults.

Exit codes:
  0 - Suite ran (even with failing tests, unless --strict)
  1 - --strict and at least one test failed, or the run was interrupted
  2 - Command error (unknown suite, bad config, simulator missing)

Examples:
  circuitcheck run p1
  circuitcheck run p2sc --dir ./proj2 --jar ./logisim.jar
  circuitcheck run tests/alu.yaml --filter sra --strict
  circuitcheck run p1 --db history.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuite(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", "", "directory holding circuits for built-in suites")
	cmd.Flags().StringVar(&opts.Jar, "jar", "", "path to logisim.jar")
	cmd.Flags().StringVar(&opts.Java, "java", "", "java executable")
	cmd.Flags().StringVar(&opts.Timeout, "timeout", "", "per-test timeout, e.g. 30s or 30 (0 disables)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite database for run history")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run tests whose description contains this text")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 if any test fails")

	return cmd
}

func runSuite(opts *RunOptions, target string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts)
	if err != nil {
		return err
	}

	suite, err := loadSuite(target)
	if err != nil {
		return err
	}
	logger.Debug("suite loaded", "suite", suite.Name, "tests", len(suite.Tests), "base_dir", suite.BaseDir)

	launcher := opts.Launcher
	if launcher == nil {
		logisim := sim.NewLogisim(cfg, logger)
		if err := logisim.Check(); err != nil {
			return WrapExitError(ExitCommandError, CodeSimulator, "simulator not available", err)
		}
		launcher = logisim
	}

	// Report lines go to stdout in text mode. In JSON mode stdout carries
	// only the response, so diagnostics move to stderr.
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	var out io.Writer = cmd.OutOrStdout()
	if opts.Format == "json" {
		out = cmd.ErrOrStderr()
	}

	runnerOpts := []harness.Option{
		harness.WithLogger(logger),
		harness.WithOutput(out),
		harness.WithFilter(opts.Filter),
	}

	if cfg.Database != "" {
		st, err := store.Open(cfg.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, CodeStore, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, harness.WithRecorder(st))
	}

	ctx, stop := signalContext(cmd, logger)
	defer stop()

	logger.Debug("run starting", "suite", suite.Name, "jar", cfg.Jar, "timeout", cfg.Timeout)
	rep, err := harness.NewRunner(cfg, launcher, runnerOpts...).Run(ctx, suite)
	if err != nil {
		return runError(err)
	}

	if opts.Format == "json" {
		if err := formatter.Success(rep); err != nil {
			return err
		}
	}
	formatter.VerboseLog("run %s finished: %d passed, %d failed", rep.RunID, rep.Passed, rep.Failed)

	if opts.Strict && !rep.AllPassed() {
		return NewExitError(ExitFailure, CodeTestsFailed,
			fmt.Sprintf("%d of %d tests failed", rep.Failed, rep.Total))
	}
	return nil
}

// resolveConfig layers explicitly set flags over the loaded configuration.
func resolveConfig(opts *RunOptions) (config.Config, error) {
	cfg, err := config.Load(opts.EnvFile)
	if err != nil {
		return cfg, WrapExitError(ExitCommandError, CodeConfig, "invalid configuration", err)
	}

	if opts.Dir != "" {
		cfg.WorkDir = opts.Dir
	}
	if opts.Jar != "" {
		cfg.Jar = opts.Jar
	}
	if opts.Java != "" {
		cfg.Java = opts.Java
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Timeout != "" {
		d, err := config.ParseTimeout(opts.Timeout)
		if err != nil {
			return cfg, WrapExitError(ExitCommandError, CodeUsage, "invalid --timeout", err)
		}
		cfg.Timeout = d
	}

	if err := cfg.Validate(); err != nil {
		return cfg, WrapExitError(ExitCommandError, CodeConfig, "invalid configuration", err)
	}
	return cfg, nil
}

// loadSuite treats target as a suite file when it has a suite extension or
// exists on disk, and as a built-in suite name otherwise.
func loadSuite(target string) (*harness.Suite, error) {
	isFile := false
	switch filepath.Ext(target) {
	case ".yaml", ".yml", ".cue":
		isFile = true
	default:
		if info, err := os.Stat(target); err == nil && !info.IsDir() {
			isFile = true
		}
	}

	if isFile {
		suite, err := harness.LoadSuite(target)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, CodeSuite, "failed to load suite", err)
		}
		return suite, nil
	}

	suite, err := harness.Builtin(target)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, CodeSuite, "failed to load suite", err)
	}
	return suite, nil
}

func runError(err error) error {
	switch {
	case errors.Is(err, sim.ErrSimulatorNotFound):
		return WrapExitError(ExitCommandError, CodeSimulator, "simulator not available", err)
	case errors.Is(err, context.Canceled):
		return WrapExitError(ExitFailure, CodeInterrupted, "run interrupted", err)
	default:
		return WrapExitError(ExitFailure, CodeStore, "run failed", err)
	}
}

// signalContext cancels on SIGINT or SIGTERM. It derives from the
// command's context when one is set (tests).
func signalContext(cmd *cobra.Command, logger *slog.Logger) (context.Context, func()) {
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigChan)
		cancel()
	}
}

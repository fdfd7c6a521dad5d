// Package sim launches the external circuit simulator and exposes its
// standard output as a line stream.
//
// The simulator is Logisim run headless:
//
//	java -jar logisim.jar -tty table <circuit.circ>
//
// which prints one tab-separated row of binary cells per clock step. Standard
// input is the null device so the simulator never waits for a terminal.
//
// A started Process must always be terminated, whether or not its output was
// fully consumed. Terminate signals the process and every descendant, then
// reaps it. Processes still running when the harness exits through
// atexit.Exit are killed as well.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"

	"github.com/tebeka/atexit"

	"github.com/roach88/circuitcheck/internal/config"
	"github.com/roach88/circuitcheck/internal/trace"
)

// ErrSimulatorNotFound means the simulator itself cannot be run. It aborts
// a whole suite rather than a single test case.
var ErrSimulatorNotFound = errors.New("simulator not found")

// Launcher starts one simulator run per circuit.
type Launcher interface {
	Start(ctx context.Context, circuit string) (Process, error)
}

// Process is a running simulator.
type Process interface {
	// Pid returns the operating system process id.
	Pid() int

	// Lines returns the process output stream. It is not restartable.
	Lines() trace.LineReader

	// Terminate stops the process and its descendants and waits for it to
	// exit. It is safe to call more than once.
	Terminate() error
}

// Logisim launches the Logisim jar through a Java runtime.
type Logisim struct {
	java   string
	jar    string
	logger *slog.Logger
}

// NewLogisim creates a launcher from the Java and jar locations in cfg.
func NewLogisim(cfg config.Config, logger *slog.Logger) *Logisim {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logisim{java: cfg.Java, jar: cfg.Jar, logger: logger}
}

// Args returns the command line used to simulate circuit.
func (l *Logisim) Args(circuit string) []string {
	return []string{l.java, "-jar", l.jar, "-tty", "table", circuit}
}

// Check verifies that both the Java runtime and the jar are present.
func (l *Logisim) Check() error {
	if _, err := exec.LookPath(l.java); err != nil {
		return fmt.Errorf("%w: java executable %q: %v", ErrSimulatorNotFound, l.java, err)
	}
	if _, err := os.Stat(l.jar); err != nil {
		return fmt.Errorf("%w: jar %q: %v", ErrSimulatorNotFound, l.jar, err)
	}
	return nil
}

// Start runs the simulator against circuit. When ctx is done the process
// tree is killed, which ends the output stream.
func (l *Logisim) Start(ctx context.Context, circuit string) (Process, error) {
	if err := l.Check(); err != nil {
		return nil, err
	}

	args := l.Args(circuit)
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = nil // null device
	cmd.Stderr = &logWriter{logger: l.logger, circuit: circuit}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create simulator stdout pipe: %w", err)
	}

	p := &running{cmd: cmd, lines: trace.NewLineReader(stdout), logger: l.logger}
	cmd.Cancel = p.kill

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrSimulatorNotFound, err)
		}
		return nil, fmt.Errorf("failed to start simulator: %w", err)
	}
	atexit.Register(func() { _ = p.kill() })

	l.logger.Debug("simulator started", "pid", cmd.Process.Pid, "circuit", circuit)
	return p, nil
}

// logWriter forwards simulator stderr to the logger.
type logWriter struct {
	logger  *slog.Logger
	circuit string
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Debug("simulator stderr", "circuit", w.circuit, "output", string(p))
	return len(p), nil
}

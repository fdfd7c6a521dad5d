package sim

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	ps "github.com/shirou/gopsutil/process"

	"github.com/roach88/circuitcheck/internal/trace"
)

// terminateGrace is how long a signalled simulator may take to exit before
// it is killed outright.
const terminateGrace = 2 * time.Second

type running struct {
	cmd    *exec.Cmd
	lines  trace.LineReader
	logger *slog.Logger

	once    sync.Once
	waitErr error
	reaped  atomic.Bool
}

func (p *running) Pid() int { return p.cmd.Process.Pid }

func (p *running) Lines() trace.LineReader { return p.lines }

// Terminate sends a termination signal to the process tree, waits up to
// terminateGrace, then kills whatever is left and reaps the process.
func (p *running) Terminate() error {
	p.once.Do(func() {
		pid := p.cmd.Process.Pid
		signalTree(int32(pid), false)

		done := make(chan error, 1)
		go func() { done <- p.cmd.Wait() }()

		select {
		case err := <-done:
			p.waitErr = err
		case <-time.After(terminateGrace):
			p.logger.Debug("simulator ignored termination, killing", "pid", pid)
			_ = p.kill()
			p.waitErr = <-done
		}
		p.reaped.Store(true)
		p.logger.Debug("simulator terminated", "pid", pid)
	})

	// Being stopped by our own signal, or by context cancellation, is the
	// normal outcome.
	var exitErr *exec.ExitError
	if errors.As(p.waitErr, &exitErr) ||
		errors.Is(p.waitErr, context.Canceled) ||
		errors.Is(p.waitErr, context.DeadlineExceeded) {
		return nil
	}
	return p.waitErr
}

// kill forcibly stops the process tree. Used on context cancellation and at
// harness exit.
func (p *running) kill() error {
	if p.cmd.Process == nil || p.reaped.Load() {
		return nil
	}
	signalTree(int32(p.cmd.Process.Pid), true)
	err := p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}

// signalTree signals the descendants of pid depth-first, then pid itself.
// Errors are ignored: processes may exit while the tree is walked.
func signalTree(pid int32, force bool) {
	proc, err := ps.NewProcess(pid)
	if err != nil {
		return
	}
	signalProcess(proc, force)
}

func signalProcess(proc *ps.Process, force bool) {
	if children, err := proc.Children(); err == nil {
		for _, child := range children {
			signalProcess(child, force)
		}
	}
	if force {
		_ = proc.Kill()
	} else {
		_ = proc.Terminate()
	}
}

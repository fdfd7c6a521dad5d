package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/roach88/circuitcheck/internal/sim"
	"github.com/roach88/circuitcheck/internal/trace"
)

// ScriptedLauncher is a sim.Launcher that plays back canned output per
// circuit instead of running a simulator.
//
// Each started process records whether it was terminated, so tests can
// check that the harness never leaks a simulator.
//
// Thread-safety: ScriptedLauncher is safe for concurrent use via internal mutex.
type ScriptedLauncher struct {
	mu      sync.Mutex
	outputs map[string][]string
	errs    map[string]error
	started []*ScriptedProcess
	nextPid int
}

// NewScriptedLauncher creates a launcher with no scripted circuits.
// Starting an unscripted circuit yields a process with no output.
func NewScriptedLauncher() *ScriptedLauncher {
	return &ScriptedLauncher{
		outputs: make(map[string][]string),
		errs:    make(map[string]error),
		nextPid: 1000,
	}
}

// Script sets the lines printed when circuit is simulated.
func (l *ScriptedLauncher) Script(circuit string, lines ...string) *ScriptedLauncher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.outputs[circuit] = lines
	return l
}

// Fail makes starting circuit return err.
func (l *ScriptedLauncher) Fail(circuit string, err error) *ScriptedLauncher {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errs[circuit] = err
	return l
}

// Start implements sim.Launcher.
func (l *ScriptedLauncher) Start(_ context.Context, circuit string) (sim.Process, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.errs[circuit]; err != nil {
		return nil, err
	}

	l.nextPid++
	p := &ScriptedProcess{
		Circuit: circuit,
		pid:     l.nextPid,
		lines:   &sliceLines{lines: l.outputs[circuit]},
	}
	l.started = append(l.started, p)
	return p, nil
}

// Started returns every process started so far, in order.
func (l *ScriptedLauncher) Started() []*ScriptedProcess {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*ScriptedProcess(nil), l.started...)
}

// ScriptedProcess is a sim.Process backed by a fixed list of lines.
type ScriptedProcess struct {
	Circuit string

	mu         sync.Mutex
	pid        int
	lines      *sliceLines
	terminated int
}

// Pid implements sim.Process.
func (p *ScriptedProcess) Pid() int { return p.pid }

// Lines implements sim.Process.
func (p *ScriptedProcess) Lines() trace.LineReader { return p.lines }

// Terminate implements sim.Process.
func (p *ScriptedProcess) Terminate() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.terminated++
	return nil
}

// Terminated reports whether Terminate was called at least once.
func (p *ScriptedProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated > 0
}

// LinesRead returns how many lines the harness consumed.
func (p *ScriptedProcess) LinesRead() int { return p.lines.read }

type sliceLines struct {
	lines []string
	read  int
}

func (s *sliceLines) ReadLine() (string, error) {
	if s.read >= len(s.lines) {
		return "", fmt.Errorf("scripted output exhausted after %d lines: %w", s.read, io.EOF)
	}
	s.read++
	return s.lines[s.read-1], nil
}

// BinaryLine renders row as a simulator output line for format f: each
// value zero-padded to its column width and grouped in nibbles.
func BinaryLine(f *trace.Format, row trace.Row) string {
	widths := f.Widths()
	cells := make([]string, len(row))
	for i, v := range row {
		w := uint(32)
		if i < len(widths) {
			w = widths[i]
		}
		cells[i] = groupBits(fmt.Sprintf("%0*b", int(w), v))
	}
	return strings.Join(cells, "\t")
}

// BinaryLines renders every row with BinaryLine.
func BinaryLines(f *trace.Format, rows []trace.Row) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = BinaryLine(f, r)
	}
	return out
}

func groupBits(bits string) string {
	var b strings.Builder
	lead := len(bits) % 4
	if lead == 0 {
		lead = 4
	}
	b.WriteString(bits[:min(lead, len(bits))])
	for i := lead; i < len(bits); i += 4 {
		b.WriteByte(' ')
		b.WriteString(bits[i : i+4])
	}
	return b.String()
}

package harness

//go:generate mockgen -destination "mock_sim_test.go" -package $GOPACKAGE -write_package_comment=false github.com/roach88/circuitcheck/internal/sim Launcher,Process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/circuitcheck/internal/config"
	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/sim"
	"github.com/roach88/circuitcheck/internal/testutil"
	"github.com/roach88/circuitcheck/internal/trace"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.WorkDir = ""
	cfg.Timeout = 5 * time.Second
	return cfg
}

func mustFormat(t *testing.T, kind string) *trace.Format {
	t.Helper()
	f, err := trace.Lookup(kind)
	require.NoError(t, err)
	return f
}

func rows(in [][]uint64) []trace.Row {
	out := make([]trace.Row, len(in))
	for i, r := range in {
		out[i] = trace.Row(r)
	}
	return out
}

var (
	aluAdd = [][]uint64{
		{0, 0, 0, 0x7659035D},
		{1, 1, 0, 0x87A08D79},
	}
	aluSra = [][]uint64{
		{0, 0, 0, 0xF7AB6FBB},
		{1, 0, 0, 0xFFFFFC00},
	}
)

// aluSuite has one passing case and one that mismatches at row 1.
func aluSuite(t *testing.T) (*Suite, *testutil.ScriptedLauncher) {
	f := mustFormat(t, "alu")
	launcher := testutil.NewScriptedLauncher().
		Script("alu-add.circ", testutil.BinaryLines(f, rows(aluAdd))...).
		Script("alu-sra.circ", testutil.BinaryLines(f, []trace.Row{
			{0, 0, 0, 0xF7AB6FBB},
			{1, 0, 0, 0xFFFFFC01},
		})...)

	suite := &Suite{
		Name: "alu",
		Tests: []TestCase{
			{Description: "ALU add", Circuit: "alu-add.circ", Kind: "alu", Expected: aluAdd},
			{Description: "ALU sra", Circuit: "alu-sra.circ", Kind: "alu", Expected: aluSra},
		},
	}
	return suite, launcher
}

func TestRun_ReportOutput(t *testing.T) {
	suite, launcher := aluSuite(t)
	var out bytes.Buffer

	rep, err := NewRunner(testConfig(), launcher, WithOutput(&out)).Run(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Total)
	assert.Equal(t, 1, rep.Passed)
	assert.Equal(t, 1, rep.Failed)
	AssertOutputGolden(t, "alu_output", out.Bytes())
	AssertGolden(t, "alu_report", rep)
}

func TestRun_TerminatesEveryProcess(t *testing.T) {
	suite, launcher := aluSuite(t)

	_, err := NewRunner(testConfig(), launcher).Run(context.Background(), suite)
	require.NoError(t, err)

	started := launcher.Started()
	require.Len(t, started, 2)
	for _, p := range started {
		assert.True(t, p.Terminated(), "process for %s was not terminated", p.Circuit)
	}
}

func TestRunCase_Pass(t *testing.T) {
	f := mustFormat(t, "alu")
	launcher := testutil.NewScriptedLauncher().
		Script("alu-add.circ", testutil.BinaryLines(f, rows(aluAdd))...)

	result, err := NewRunner(testConfig(), launcher).RunCase(context.Background(),
		TestCase{Description: "ALU add", Circuit: "alu-add.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Equal(t, report.ReasonMatched, result.Reason)
	assert.Equal(t, -1, result.MismatchAt)
	assert.Empty(t, result.ErrorCode)
	assert.Empty(t, result.Debug)
}

func TestRunCase_ExtraOutputIgnored(t *testing.T) {
	f := mustFormat(t, "alu")
	lines := testutil.BinaryLines(f, rows(aluAdd))
	lines = append(lines, "not even binary", "")
	launcher := testutil.NewScriptedLauncher().Script("alu-add.circ", lines...)

	result, err := NewRunner(testConfig(), launcher).RunCase(context.Background(),
		TestCase{Description: "ALU add", Circuit: "alu-add.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)

	assert.True(t, result.Pass)
	assert.Equal(t, len(aluAdd), launcher.Started()[0].LinesRead())
}

func TestRunCase_MismatchStopsReading(t *testing.T) {
	f := mustFormat(t, "alu")
	expected := [][]uint64{
		{0, 0, 0, 1},
		{1, 0, 0, 2},
		{2, 0, 0, 3},
		{3, 0, 0, 4},
	}
	live := rows(expected)
	live[1] = trace.Row{1, 0, 0, 9}
	launcher := testutil.NewScriptedLauncher().Script("alu.circ", testutil.BinaryLines(f, live)...)
	var out bytes.Buffer

	result, err := NewRunner(testConfig(), launcher, WithOutput(&out)).RunCase(context.Background(),
		TestCase{Description: "ALU", Circuit: "alu.circ", Kind: "alu", Expected: expected})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, 1, result.MismatchAt)
	assert.Equal(t, trace.ErrCodeMismatch, result.ErrorCode)
	assert.Equal(t, "Did not match expected output (mismatch at row 1)", result.Reason)
	require.Len(t, result.Debug, 2)
	assert.Equal(t, trace.Row{1, 0, 0, 9}, result.Debug[1].Live)
	assert.Equal(t, 2, launcher.Started()[0].LinesRead())
	assert.True(t, launcher.Started()[0].Terminated())
	assert.Contains(t, out.String(), "Format is student then expected\n")
}

func TestRunCase_UnknownKind(t *testing.T) {
	launcher := testutil.NewScriptedLauncher()
	var out bytes.Buffer

	result, err := NewRunner(testConfig(), launcher, WithOutput(&out)).RunCase(context.Background(),
		TestCase{Description: "func test", Circuit: "func_test.circ", Kind: "cpu-end", Expected: [][]uint64{{0, 0, 0, 0}}})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, report.ReasonTestError, result.Reason)
	assert.Equal(t, trace.ErrCodeUnknownFormat, result.ErrorCode)
	assert.Equal(t, "CANNOT format test type called [cpu-end]\n", out.String())
	assert.Empty(t, launcher.Started(), "no simulator should start for an unknown kind")
}

func TestRunCase_InvalidExpectedFailsFast(t *testing.T) {
	tests := []struct {
		name     string
		expected [][]uint64
		code     trace.ErrorCode
	}{
		{"width overflow", [][]uint64{{0, 2, 0, 0}}, trace.ErrCodeWidthOverflow},
		{"wrong length", [][]uint64{{0, 0, 0}}, trace.ErrCodeLengthMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			launcher := testutil.NewScriptedLauncher()
			var out bytes.Buffer

			result, err := NewRunner(testConfig(), launcher, WithOutput(&out)).RunCase(context.Background(),
				TestCase{Description: "bad", Circuit: "alu.circ", Kind: "alu", Expected: tt.expected})
			require.NoError(t, err)

			assert.False(t, result.Pass)
			assert.Equal(t, report.ReasonTestError, result.Reason)
			assert.Equal(t, tt.code, result.ErrorCode)
			assert.True(t, strings.HasPrefix(out.String(), "Error in formatting of expected output"))
			assert.Empty(t, launcher.Started())
		})
	}
}

func TestRunCase_EmptySimulatorOutput(t *testing.T) {
	launcher := testutil.NewScriptedLauncher()
	var out bytes.Buffer

	result, err := NewRunner(testConfig(), launcher, WithOutput(&out)).RunCase(context.Background(),
		TestCase{Description: "missing circuit", Circuit: "missing.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, report.ReasonTestError, result.Reason)
	assert.Equal(t, trace.ErrCodeParseFailure, result.ErrorCode)
	assert.Contains(t, result.Detail, "are you sure you have a circuit file for this test?")
	assert.Contains(t, out.String(), "Error in formatting of simulator output (check missing.circ):\n")
	assert.True(t, launcher.Started()[0].Terminated())
}

func TestRunCase_ReferenceFile(t *testing.T) {
	dir := t.TempDir()
	f := mustFormat(t, "cpu")
	want := []trace.Row{
		{0, 0, 0, 0, 0, 0, 0x0, 0x20100001},
		{1, 0, 0, 0, 0, 1, 0x4, 0x20110002},
	}
	ref := strings.Join(testutil.BinaryLines(f, want), "\n") + "\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "reference_output"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reference_output", "cpu.out"), []byte(ref), 0o644))

	launcher := testutil.NewScriptedLauncher().
		Script(filepath.Join(dir, "cpu.circ"), testutil.BinaryLines(f, want)...)

	suite := &Suite{
		Name:    "cpu",
		BaseDir: dir,
		Tests: []TestCase{
			{Description: "CPU starter", Circuit: "cpu.circ", Kind: "cpu", Reference: "reference_output/cpu.out"},
		},
	}

	rep, err := NewRunner(testConfig(), launcher).Run(context.Background(), suite)
	require.NoError(t, err)
	require.Len(t, rep.Cases, 1)
	assert.True(t, rep.Cases[0].Pass, rep.Cases[0].Detail)
}

func TestRunCase_MissingReferenceFile(t *testing.T) {
	launcher := testutil.NewScriptedLauncher()

	result, err := NewRunner(testConfig(), launcher).RunCase(context.Background(),
		TestCase{Description: "CPU", Circuit: "cpu.circ", Kind: "cpu", Reference: filepath.Join(t.TempDir(), "nope.out")})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, report.ReasonTestError, result.Reason)
	assert.Contains(t, result.Detail, "failed to open reference file")
	assert.Empty(t, launcher.Started())
}

func TestRun_SimulatorNotFoundAbortsSuite(t *testing.T) {
	suite, launcher := aluSuite(t)
	launcher.Fail("alu-add.circ", fmt.Errorf("%w: java executable %q", sim.ErrSimulatorNotFound, "java"))

	rep, err := NewRunner(testConfig(), launcher).Run(context.Background(), suite)
	require.Error(t, err)
	assert.ErrorIs(t, err, sim.ErrSimulatorNotFound)
	assert.Equal(t, 0, rep.Total)
	assert.Empty(t, launcher.Started())
}

func TestRun_LaunchFailureFailsOneCase(t *testing.T) {
	suite, launcher := aluSuite(t)
	launcher.Fail("alu-add.circ", errors.New("fork failed"))

	rep, err := NewRunner(testConfig(), launcher).Run(context.Background(), suite)
	require.NoError(t, err)

	require.Len(t, rep.Cases, 2)
	assert.Equal(t, report.ReasonLaunchFailed, rep.Cases[0].Reason)
	assert.Equal(t, "fork failed", rep.Cases[0].Detail)
	assert.Equal(t, "ALU sra", rep.Cases[1].Description)
}

func TestRun_Filter(t *testing.T) {
	suite, launcher := aluSuite(t)

	rep, err := NewRunner(testConfig(), launcher, WithFilter("sRA")).Run(context.Background(), suite)
	require.NoError(t, err)

	require.Len(t, rep.Cases, 1)
	assert.Equal(t, "ALU sra", rep.Cases[0].Description)
	require.Len(t, launcher.Started(), 1)
	assert.Equal(t, "alu-sra.circ", launcher.Started()[0].Circuit)
}

func TestRun_CancelledContext(t *testing.T) {
	suite, launcher := aluSuite(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(testConfig(), launcher).Run(ctx, suite)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, launcher.Started())
}

func TestRun_BuiltinUnknownKindDoesNotStopSuite(t *testing.T) {
	suite, err := Builtin("p2sc")
	require.NoError(t, err)
	var out bytes.Buffer

	// Every circuit is unscripted, so each cpu case sees empty output.
	rep, err := NewRunner(testConfig(), testutil.NewScriptedLauncher(), WithOutput(&out)).Run(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, len(suite.Tests), rep.Total)
	assert.Equal(t, 0, rep.Passed)
	last := rep.Cases[len(rep.Cases)-1]
	assert.Equal(t, "func test", last.Description)
	assert.Equal(t, trace.ErrCodeUnknownFormat, last.ErrorCode)
	assert.Contains(t, out.String(), "CANNOT format test type called [cpu-end]")
	assert.True(t, strings.HasSuffix(out.String(), "Passed 0/6 tests\n"))
}

// blockingLines never yields a line until released.
type blockingLines struct {
	release chan struct{}
}

func (b *blockingLines) ReadLine() (string, error) {
	<-b.release
	return "", io.EOF
}

func TestRunCase_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := NewMockLauncher(ctrl)
	proc := NewMockProcess(ctrl)

	lines := &blockingLines{release: make(chan struct{})}
	var once sync.Once

	launcher.EXPECT().Start(gomock.Any(), "slow.circ").Return(proc, nil)
	proc.EXPECT().Pid().Return(4242).AnyTimes()
	proc.EXPECT().Lines().Return(lines)
	proc.EXPECT().Terminate().DoAndReturn(func() error {
		once.Do(func() { close(lines.release) })
		return nil
	}).MinTimes(1)

	cfg := testConfig()
	cfg.Timeout = 20 * time.Millisecond

	result, err := NewRunner(cfg, launcher).RunCase(context.Background(),
		TestCase{Description: "slow", Circuit: "slow.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)

	assert.False(t, result.Pass)
	assert.Equal(t, report.ReasonTimeout, result.Reason)
	assert.Contains(t, result.Detail, "0 of 2 rows read")
}

func TestRunCase_LaunchReceivesDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := NewMockLauncher(ctrl)

	launcher.EXPECT().Start(gomock.Any(), "alu.circ").DoAndReturn(
		func(ctx context.Context, _ string) (sim.Process, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "launch context should carry the case timeout")
			return nil, errors.New("stop here")
		})

	result, err := NewRunner(testConfig(), launcher).RunCase(context.Background(),
		TestCase{Description: "alu", Circuit: "alu.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)
	assert.Equal(t, report.ReasonLaunchFailed, result.Reason)
}

func TestRunCase_ZeroTimeoutHasNoDeadline(t *testing.T) {
	ctrl := gomock.NewController(t)
	launcher := NewMockLauncher(ctrl)

	launcher.EXPECT().Start(gomock.Any(), "alu.circ").DoAndReturn(
		func(ctx context.Context, _ string) (sim.Process, error) {
			_, ok := ctx.Deadline()
			assert.False(t, ok)
			return nil, errors.New("stop here")
		})

	cfg := testConfig()
	cfg.Timeout = 0
	_, err := NewRunner(cfg, launcher).RunCase(context.Background(),
		TestCase{Description: "alu", Circuit: "alu.circ", Kind: "alu", Expected: aluAdd})
	require.NoError(t, err)
}

type recordedCase struct {
	runID string
	seq   int
	desc  string
}

type fakeRecorder struct {
	began    []string
	cases    []recordedCase
	finished *report.SuiteReport
	failCase error
}

func (r *fakeRecorder) BeginRun(_ context.Context, suite string) (string, error) {
	r.began = append(r.began, suite)
	return "run-1", nil
}

func (r *fakeRecorder) RecordCase(_ context.Context, runID string, seq int, result TestResult) error {
	if r.failCase != nil {
		return r.failCase
	}
	r.cases = append(r.cases, recordedCase{runID: runID, seq: seq, desc: result.Description})
	return nil
}

func (r *fakeRecorder) FinishRun(_ context.Context, _ string, rep *report.SuiteReport) error {
	r.finished = rep
	return nil
}

func TestRun_Recorder(t *testing.T) {
	suite, launcher := aluSuite(t)
	rec := &fakeRecorder{}

	rep, err := NewRunner(testConfig(), launcher, WithRecorder(rec)).Run(context.Background(), suite)
	require.NoError(t, err)

	assert.Equal(t, []string{"alu"}, rec.began)
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, []recordedCase{
		{runID: "run-1", seq: 0, desc: "ALU add"},
		{runID: "run-1", seq: 1, desc: "ALU sra"},
	}, rec.cases)
	assert.Same(t, rep, rec.finished)
}

func TestRun_RecorderFailureAborts(t *testing.T) {
	suite, launcher := aluSuite(t)
	rec := &fakeRecorder{failCase: errors.New("disk full")}

	_, err := NewRunner(testConfig(), launcher, WithRecorder(rec)).Run(context.Background(), suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Nil(t, rec.finished)
}

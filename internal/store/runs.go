package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/xid"

	"github.com/roach88/circuitcheck/internal/report"
	"github.com/roach88/circuitcheck/internal/trace"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// Run is one recorded suite run.
type Run struct {
	ID       string `json:"id"`
	Seq      int64  `json:"seq"`
	Suite    string `json:"suite"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Total    int    `json:"total"`
	Finished bool   `json:"finished"`
}

// StartedAt returns the start time embedded in the run's UUIDv7 id, or the
// zero time if the id is not a UUIDv7.
func (r Run) StartedAt() time.Time {
	id, err := uuid.Parse(r.ID)
	if err != nil || id.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := id.Time().UnixTime()
	return time.Unix(sec, nsec)
}

// Case is one recorded case result.
type Case struct {
	ID     string            `json:"id"`
	RunID  string            `json:"run_id"`
	Seq    int               `json:"seq"`
	Result report.CaseResult `json:"result"`
}

// BeginRun registers a new run of suite and returns its id.
func (s *Store) BeginRun(ctx context.Context, suite string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("begin run: generate id: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, seq, suite)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?)
	`, id.String(), suite)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id.String(), nil
}

// RecordCase stores the result of the seq'th executed case of a run.
// Recording the same position twice is an error.
func (s *Store) RecordCase(ctx context.Context, runID string, seq int, result report.CaseResult) error {
	debugJSON, err := marshalDebug(result.Debug)
	if err != nil {
		return fmt.Errorf("record case: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO cases
		(id, run_id, seq, description, circuit, kind, pass, reason, error_code, detail, mismatch_at, debug)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		xid.New().String(),
		runID,
		seq,
		result.Description,
		result.Circuit,
		result.Kind,
		result.Pass,
		result.Reason,
		string(result.ErrorCode),
		result.Detail,
		result.MismatchAt,
		debugJSON,
	)
	if err != nil {
		return fmt.Errorf("record case: %w", err)
	}
	return nil
}

// FinishRun stores the final counts of a run and marks it finished.
func (s *Store) FinishRun(ctx context.Context, runID string, r *report.SuiteReport) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET passed = ?, failed = ?, total = ?, finished = 1
		WHERE id = ?
	`, r.Passed, r.Failed, r.Total, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first. A limit of zero or
// less returns every run. A non-empty suite restricts the listing to that
// suite.
func (s *Store) ListRuns(ctx context.Context, suite string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, suite, passed, failed, total, finished
		FROM runs
		WHERE ? = '' OR suite = ?
		ORDER BY seq DESC
		LIMIT ?
	`, suite, suite, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// ReadRun returns a single run.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, suite, passed, failed, total, finished
		FROM runs WHERE id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", runID, err)
	}
	return run, nil
}

// ReadCases returns the recorded cases of a run in execution order.
func (s *Store) ReadCases(ctx context.Context, runID string) ([]Case, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, run_id, seq, description, circuit, kind, pass, reason,
		       error_code, detail, mismatch_at, debug
		FROM cases
		WHERE run_id = ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	defer rows.Close()

	cases := []Case{}
	for rows.Next() {
		var (
			c         Case
			errorCode string
			debugJSON string
		)
		if err := rows.Scan(
			&c.ID, &c.RunID, &c.Seq,
			&c.Result.Description, &c.Result.Circuit, &c.Result.Kind,
			&c.Result.Pass, &c.Result.Reason, &errorCode, &c.Result.Detail,
			&c.Result.MismatchAt, &debugJSON,
		); err != nil {
			return nil, fmt.Errorf("read cases: scan: %w", err)
		}
		c.Result.ErrorCode = trace.ErrorCode(errorCode)
		if c.Result.Debug, err = unmarshalDebug(debugJSON); err != nil {
			return nil, fmt.Errorf("read cases: case %d: %w", c.Seq, err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read cases: %w", err)
	}
	return cases, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	err := row.Scan(&r.ID, &r.Seq, &r.Suite, &r.Passed, &r.Failed, &r.Total, &r.Finished)
	return r, err
}

// marshalDebug stores compared rows as canonical JSON arrays of numbers.
func marshalDebug(pairs []trace.RowPair) (string, error) {
	list := make([]any, len(pairs))
	for i, p := range pairs {
		list[i] = map[string]any{
			"live":     rowValues(p.Live),
			"expected": rowValues(p.Expected),
		}
	}
	data, err := report.MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("marshal debug rows: %w", err)
	}
	return string(data), nil
}

func rowValues(r trace.Row) []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = v
	}
	return out
}

func unmarshalDebug(data string) ([]trace.RowPair, error) {
	var pairs []trace.RowPair
	if err := json.Unmarshal([]byte(data), &pairs); err != nil {
		return nil, fmt.Errorf("unmarshal debug rows: %w", err)
	}
	if len(pairs) == 0 {
		return nil, nil
	}
	return pairs, nil
}

package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"blaulicht/internal/services"
)

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunTruncated RunStatus = "truncated"
	RunFailed    RunStatus = "failed"
	RunCanceled  RunStatus = "canceled"
)

// StatusForError maps a run's terminal error to its ledger status.
func StatusForError(err error) RunStatus {
	switch {
	case err == nil:
		return RunCompleted
	case services.IsQuota(err):
		return RunTruncated
	case errors.Is(err, context.Canceled):
		return RunCanceled
	default:
		return RunFailed
	}
}

// Run is one recorded invocation.
type Run struct {
	ID         string     `json:"id"`
	Command    string     `json:"command"`
	Partitions []int      `json:"partitions"`
	Fields     []string   `json:"fields"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Computed   int        `json:"computed"`
	Fallback   int        `json:"fallback"`
	Pending    int        `json:"pending"`
}

// FieldStat is the telemetry of one field worklist within a run.
type FieldStat struct {
	RunID        string `json:"run_id"`
	Partition    int    `json:"partition"`
	Field        string `json:"field"`
	Satisfied    int    `json:"satisfied"`
	Computed     int    `json:"computed"`
	Fallback     int    `json:"fallback"`
	Pending      int    `json:"pending"`
	Unrecognized int    `json:"unrecognized"`
}

// BeginRun inserts a running entry.
func (s *Store) BeginRun(ctx context.Context, id, command string, partitions []int, fields []string) error {
	if strings.TrimSpace(id) == "" {
		return errors.New("run id required")
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO runs (id, command, partitions, fields, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, command, joinInts(partitions), strings.Join(fields, ","), RunRunning, formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stamps the run with its terminal status derived from runErr.
func (s *Store) FinishRun(ctx context.Context, id string, runErr error) error {
	var message string
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE runs SET status = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		StatusForError(runErr), nullableString(message), formatTime(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run %s: %w", id, services.ErrNotFound)
	}
	return nil
}

const runColumns = `r.id, r.command, r.partitions, r.fields, r.status, r.error_message, r.started_at, r.finished_at,
    COALESCE(SUM(f.computed), 0), COALESCE(SUM(f.fallback), 0), COALESCE(SUM(f.pending), 0)`

// Runs lists the most recent runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+`
        FROM runs r LEFT JOIN field_stats f ON f.run_id = r.id
        GROUP BY r.id ORDER BY r.started_at DESC, r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns one run or an error matching services.ErrNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+`
        FROM runs r LEFT JOIN field_stats f ON f.run_id = r.id
        WHERE r.id = ? GROUP BY r.id`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "ledger", "get run", id, nil)
	}
	return run, err
}

// LatestRun returns the newest run of command, or services.ErrNotFound.
func (s *Store) LatestRun(ctx context.Context, command string) (Run, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE command = ? ORDER BY started_at DESC, id DESC LIMIT 1`, command,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, services.Wrap(services.ErrNotFound, "ledger", "latest run", command, nil)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return s.GetRun(ctx, id)
}

func scanRun(scanner interface{ Scan(dest ...any) error }) (Run, error) {
	var (
		run         Run
		partitions  string
		fields      string
		status      string
		errMessage  sql.NullString
		startedRaw  string
		finishedRaw sql.NullString
	)
	if err := scanner.Scan(
		&run.ID,
		&run.Command,
		&partitions,
		&fields,
		&status,
		&errMessage,
		&startedRaw,
		&finishedRaw,
		&run.Computed,
		&run.Fallback,
		&run.Pending,
	); err != nil {
		return Run{}, err
	}
	run.Status = RunStatus(status)
	run.Error = errMessage.String
	run.Partitions = splitInts(partitions)
	if fields != "" {
		run.Fields = strings.Split(fields, ",")
	}
	if started, err := parseTimeString(startedRaw); err == nil {
		run.StartedAt = started
	}
	if finished, err := parseTimeString(finishedRaw.String); err == nil {
		run.FinishedAt = &finished
	}
	return run, nil
}

// RecordFieldStats upserts the telemetry for one field worklist.
func (s *Store) RecordFieldStats(ctx context.Context, stat FieldStat) error {
	_, err := s.execWithRetry(ctx,
		`INSERT INTO field_stats (run_id, partition, field, satisfied, computed, fallback, pending, unrecognized, recorded_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (run_id, partition, field) DO UPDATE SET
            satisfied = excluded.satisfied,
            computed = excluded.computed,
            fallback = excluded.fallback,
            pending = excluded.pending,
            unrecognized = excluded.unrecognized,
            recorded_at = excluded.recorded_at`,
		stat.RunID, stat.Partition, stat.Field,
		stat.Satisfied, stat.Computed, stat.Fallback, stat.Pending, stat.Unrecognized,
		formatTime(s.now()),
	)
	if err != nil {
		return fmt.Errorf("record field stats: %w", err)
	}
	return nil
}

// FieldStats returns the per-field telemetry of a run ordered by partition.
func (s *Store) FieldStats(ctx context.Context, runID string) ([]FieldStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, partition, field, satisfied, computed, fallback, pending, unrecognized
        FROM field_stats WHERE run_id = ? ORDER BY partition, field`, runID)
	if err != nil {
		return nil, fmt.Errorf("list field stats: %w", err)
	}
	defer rows.Close()

	var stats []FieldStat
	for rows.Next() {
		var st FieldStat
		if err := rows.Scan(&st.RunID, &st.Partition, &st.Field, &st.Satisfied, &st.Computed, &st.Fallback, &st.Pending, &st.Unrecognized); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}

func splitInts(value string) []int {
	if value == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(value, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			out = append(out, n)
		}
	}
	return out
}

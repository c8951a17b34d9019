package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Failure is one row that received a fallback value.
type Failure struct {
	ID         int64      `json:"id"`
	RunID      string     `json:"run_id"`
	Partition  int        `json:"partition"`
	Field      string     `json:"field"`
	Link       string     `json:"link"`
	Error      string     `json:"error"`
	Fallback   string     `json:"fallback"`
	CreatedAt  time.Time  `json:"created_at"`
	ReplayedAt *time.Time `json:"replayed_at,omitempty"`
}

// FailureFilter narrows a failure listing. Zero values match everything.
type FailureFilter struct {
	RunID           string
	Partition       int
	Field           string
	IncludeReplayed bool
	Limit           int
}

// RecordFailure appends a failure entry.
func (s *Store) RecordFailure(ctx context.Context, f Failure) error {
	created := f.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO failures (run_id, partition, field, link, error_message, fallback, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.RunID, f.Partition, f.Field, f.Link, f.Error, f.Fallback, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("record failure: %w", err)
	}
	return nil
}

// Failures lists recorded failures matching filter, oldest first.
func (s *Store) Failures(ctx context.Context, filter FailureFilter) ([]Failure, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.RunID != "" {
		clauses = append(clauses, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if filter.Partition != 0 {
		clauses = append(clauses, "partition = ?")
		args = append(args, filter.Partition)
	}
	if filter.Field != "" {
		clauses = append(clauses, "field = ?")
		args = append(args, filter.Field)
	}
	if !filter.IncludeReplayed {
		clauses = append(clauses, "replayed_at IS NULL")
	}

	query := `SELECT id, run_id, partition, field, link, error_message, fallback, created_at, replayed_at FROM failures`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var (
			f           Failure
			createdRaw  string
			replayedRaw sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.RunID, &f.Partition, &f.Field, &f.Link, &f.Error, &f.Fallback, &createdRaw, &replayedRaw); err != nil {
			return nil, err
		}
		if created, err := parseTimeString(createdRaw); err == nil {
			f.CreatedAt = created
		}
		if replayed, err := parseTimeString(replayedRaw.String); err == nil {
			f.ReplayedAt = &replayed
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// MarkReplayed stamps failures so later replays skip them.
func (s *Store) MarkReplayed(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, formatTime(s.now()))
	for _, id := range ids {
		args = append(args, id)
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE failures SET replayed_at = ? WHERE replayed_at IS NULL AND id IN (`+makePlaceholders(len(ids))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("mark replayed: %w", err)
	}
	return res.RowsAffected()
}

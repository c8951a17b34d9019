package workflow

import (
	"context"
	"fmt"

	"blaulicht/internal/ledger"
	"blaulicht/internal/logging"
	"blaulicht/internal/partition"
	"blaulicht/internal/report"
	"blaulicht/internal/services"
)

// ReplayRequest selects recorded failures to reset.
type ReplayRequest struct {
	Year  int
	Field string
	RunID string
}

// ReplayReport summarizes a replay.
type ReplayReport struct {
	Partition int          `json:"partition"`
	Field     report.Field `json:"field"`
	Failures  int          `json:"failures"`
	Reset     int          `json:"reset"`
	Skipped   int          `json:"skipped"`
}

// Replay resets rows that received a fallback back to unset so the next
// enrichment recomputes them. A row is only reset while it still holds the
// recorded fallback value; rows edited since are left alone. Every matched
// failure is marked replayed.
func (m *Manager) Replay(ctx context.Context, req ReplayRequest) (ReplayReport, error) {
	rep := ReplayReport{Partition: req.Year}
	if m.ledger == nil {
		return rep, services.Wrap(services.ErrConfiguration, "workflow", "replay", "ledger not available", nil)
	}
	field, ok := report.ParseField(req.Field)
	if !ok {
		return rep, services.Wrap(services.ErrValidation, "workflow", "replay", fmt.Sprintf("unknown field %q", req.Field), nil)
	}
	rep.Field = field
	ctx = services.WithField(services.WithPartition(ctx, req.Year), string(field))
	logger := logging.WithContext(ctx, m.logger)

	failures, err := m.ledger.Failures(ctx, ledger.FailureFilter{
		RunID:     req.RunID,
		Partition: req.Year,
		Field:     string(field),
	})
	if err != nil {
		return rep, err
	}
	rep.Failures = len(failures)
	if len(failures) == 0 {
		logger.Info("no failures to replay")
		return rep, nil
	}

	key := partition.Key(req.Year)
	unlock, err := m.store.Lock(key)
	if err != nil {
		return rep, err
	}
	defer func() {
		if err := unlock(); err != nil {
			logger.Warn("partition unlock failed", logging.Error(err))
		}
	}()

	rows, err := m.store.Load(ctx, key)
	if err != nil {
		return rep, err
	}
	index := partition.LinkIndex(rows)
	ids := make([]int64, 0, len(failures))
	for _, f := range failures {
		ids = append(ids, f.ID)
		idx, ok := index[f.Link]
		if !ok || f.Fallback == report.Unset || rows[idx].Get(field) != f.Fallback {
			rep.Skipped++
			continue
		}
		rows[idx].Set(field, report.Unset)
		rep.Reset++
	}
	if rep.Reset > 0 {
		if err := m.store.Save(ctx, key, rows); err != nil {
			return rep, err
		}
	}
	if _, err := m.ledger.MarkReplayed(ctx, ids); err != nil {
		return rep, err
	}
	logger.Info("failures replayed",
		logging.Int("reset", rep.Reset),
		logging.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

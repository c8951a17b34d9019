package ledger

import (
	"context"

	"blaulicht/internal/enrich"
	"blaulicht/internal/logging"
	"blaulicht/internal/services"
)

// RowFinished records fallback outcomes as failures. Rows outside a run
// context are not recorded.
func (s *Store) RowFinished(ctx context.Context, event enrich.RowEvent) {
	if event.Outcome != enrich.OutcomeFallback {
		return
	}
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		return
	}
	message := "empty result"
	if event.Err != nil {
		message = event.Err.Error()
	}
	err := s.RecordFailure(context.WithoutCancel(ctx), Failure{
		RunID:     runID,
		Partition: event.Partition,
		Field:     string(event.Field),
		Link:      event.Link,
		Error:     message,
		Fallback:  event.Value,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "failure not recorded", "ledger_write_failed",
			logging.Link(event.Link),
			logging.Error(err),
			logging.String(logging.FieldImpact, "row will not be offered for replay"),
		)
	}
}

// FieldFinished records per-field telemetry for the current run.
func (s *Store) FieldFinished(ctx context.Context, event enrich.FieldEvent) {
	runID, ok := services.RunIDFromContext(ctx)
	if !ok {
		return
	}
	err := s.RecordFieldStats(context.WithoutCancel(ctx), FieldStat{
		RunID:        runID,
		Partition:    event.Partition,
		Field:        string(event.Field),
		Satisfied:    event.Stats.Satisfied,
		Computed:     event.Stats.Computed,
		Fallback:     event.Stats.Fallback,
		Pending:      event.Stats.Pending,
		Unrecognized: event.Stats.Unrecognized,
	})
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "field stats not recorded", "ledger_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "run summary incomplete"),
		)
	}
}

var _ enrich.Observer = (*Store)(nil)

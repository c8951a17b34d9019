package enrich

import (
	"context"

	"blaulicht/internal/report"
)

// Outcome is the terminal state of one row's field computation.
type Outcome string

const (
	OutcomeDone     Outcome = "done"
	OutcomeFallback Outcome = "fallback"
)

// RowEvent describes one finished computation.
type RowEvent struct {
	Partition int
	Field     report.Field
	Link      string
	Outcome   Outcome
	Value     string
	Err       error
}

// FieldEvent carries the telemetry of one field worklist.
type FieldEvent struct {
	Partition int
	Field     report.Field
	Stats     FieldStats
}

// Observer receives driver progress. Implementations must be safe for
// concurrent use when partitions run in parallel.
type Observer interface {
	RowFinished(ctx context.Context, event RowEvent)
	FieldFinished(ctx context.Context, event FieldEvent)
}

type multiObserver []Observer

// Observers fans events out to every non-nil observer.
func Observers(observers ...Observer) Observer {
	var out multiObserver
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) RowFinished(ctx context.Context, event RowEvent) {
	for _, o := range m {
		o.RowFinished(ctx, event)
	}
}

func (m multiObserver) FieldFinished(ctx context.Context, event FieldEvent) {
	for _, o := range m {
		o.FieldFinished(ctx, event)
	}
}

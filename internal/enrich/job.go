package enrich

import (
	"context"
	"sync"
	"time"

	"blaulicht/internal/report"
)

// Computator produces the value of one field for one report.
type Computator interface {
	Compute(ctx context.Context, r report.Report) (string, error)
}

// BatchComputator is implemented by computators that can process many rows in
// one call. Output index i belongs to input index i. On error the computed
// prefix is returned together with the error.
type BatchComputator interface {
	Computator
	ComputeBatch(ctx context.Context, rows []report.Report) ([]string, error)
}

// ComputeFunc adapts a function to Computator.
type ComputeFunc func(ctx context.Context, r report.Report) (string, error)

// Compute calls f.
func (f ComputeFunc) Compute(ctx context.Context, r report.Report) (string, error) {
	return f(ctx, r)
}

// Job binds a computator to the field it fills.
type Job struct {
	Field      report.Field
	Computator Computator
	// Fallback is written when a call fails and the computator returned no
	// usable value. An empty fallback leaves the row unset for the next run.
	Fallback string
	// MinInterval is the minimum spacing between consecutive calls.
	MinInterval time.Duration
}

// window enforces a job's minimum call spacing across partitions. Call
// starts are handed out as slots at least interval apart.
type window struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
	now      func() time.Time
}

func newWindow(interval time.Duration) *window {
	return &window{interval: interval, now: time.Now}
}

// wait reserves the next slot under the lock, then sleeps until it starts.
func (w *window) wait(ctx context.Context, sleep func(context.Context, time.Duration) error) error {
	if w.interval <= 0 {
		return nil
	}
	w.mu.Lock()
	now := w.now()
	slot := now
	if w.next.After(now) {
		slot = w.next
	}
	w.next = slot.Add(w.interval)
	w.mu.Unlock()

	if delay := slot.Sub(now); delay > 0 {
		return sleep(ctx, delay)
	}
	return ctx.Err()
}

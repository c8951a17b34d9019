package services

import (
	"context"
	"time"
)

type contextKey string

const (
	runIDKey     contextKey = "run_id"
	partitionKey contextKey = "partition"
	fieldKey     contextKey = "field"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithPartition annotates context with the partition key (year).
func WithPartition(ctx context.Context, year int) context.Context {
	return context.WithValue(ctx, partitionKey, year)
}

// PartitionFromContext returns the partition key if present.
func PartitionFromContext(ctx context.Context) (int, bool) {
	v := ctx.Value(partitionKey)
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	default:
		return 0, false
	}
}

// WithField annotates context with the enrichment field name.
func WithField(ctx context.Context, field string) context.Context {
	if field == "" {
		return ctx
	}
	return context.WithValue(ctx, fieldKey, field)
}

// FieldFromContext returns the field name if present.
func FieldFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(fieldKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// Sleep waits for delay or until ctx is done, whichever comes first. It
// returns ctx.Err() when the context ends the wait.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

package logging

import (
	"context"
	"log/slog"

	"blaulicht/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID is the standardized key for the run identifier shared with the ledger.
	FieldRunID = "run_id"
	// FieldPartition is the standardized key for the partition (year).
	FieldPartition = "partition"
	// FieldField is the standardized key for the enrichment field name.
	FieldField = "field"
	// FieldLink is the standardized key for the report link (row identifier).
	FieldLink = "link"
	// FieldEventType classifies a record for log queries (e.g. row_fallback).
	FieldEventType = "event_type"
	// FieldErrorHint suggests the next step to an operator.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
)

// contextFields extracts standardized slog attributes from the provided context.
func contextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if year, ok := services.PartitionFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldPartition, year))
	}
	if field, ok := services.FieldFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldField, field))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(toArgs(fields...)...)
}

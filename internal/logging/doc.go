// Package logging assembles structured slog loggers and formatting helpers used
// across blaulicht.
//
// It owns the console and JSON handlers, the fan-out that writes a JSON run
// log next to console output, per-component level overrides, and retention
// pruning of old run logs. Context helpers tag records with the run ID,
// partition, and field so a failed row can be traced back to its link.
//
// Prefer these constructors over hand-rolled slog setup to ensure new
// components emit data with the same shape as the rest of the system.
package logging

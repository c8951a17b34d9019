// Package ledger persists the history of blaulicht runs in SQLite.
//
// Each enrich or update invocation gets a row in runs keyed by its run ID.
// During enrichment the Store acts as an enrich.Observer: per-field worklist
// telemetry lands in field_stats and every row that received a fallback
// value lands in failures with the error text and the value written. The
// replay command reads failures back to reset those rows.
//
// The schema is embedded and versioned; a database created by a different
// version is rejected with ErrSchemaMismatch instead of being migrated.
package ledger

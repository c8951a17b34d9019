// Package services defines shared utilities consumed by the enrichment driver,
// the incremental updater, and the external service adapters.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, partition keys, and field names for
//     logging and ledger bookkeeping.
//   - Structured error markers plus the Wrap helper so callers can tell a
//     per-row transient failure from quota exhaustion or a malformed
//     timestamp with errors.Is.
//   - ExitCode, which turns those markers into the CLI exit status.
//
// Adapters under this package (llm, mymemory) tag their failures with these
// markers so the driver's fallback and abort paths stay uniform.
package services

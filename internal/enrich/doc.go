// Package enrich implements the enrichment driver.
//
// For each partition the driver loads the rows, builds one static worklist per
// field through the gate, and walks each worklist calling the field's
// computator. Successful values are written in place; failed calls write the
// computator's partial value or the job fallback; quota exhaustion truncates
// only the affected field and leaves its remaining rows pending for the next
// run. Partitions are saved according to the persist policy, and never when
// nothing changed, so repeated runs over a complete partition leave the file
// byte-identical.
//
// Per-job call spacing and the exhausted-computator set are shared by every
// partition a Driver processes, so one Driver may serve parallel partitions.
package enrich

// Package workflow wires the blaulicht components for one CLI invocation.
//
// The Manager owns the partition store, the archive client and the category
// taxonomy, and builds the computators for the requested fields from
// configuration: description from the archive, en_title through MyMemory,
// category through a chat-completion model. Each run gets a UUID that tags
// logs and the ledger entry.
//
// RunEnrichment drives partitions in parallel up to enrich.parallelism; the
// driver shares quota state so a computator exhausted in one partition is not
// called again in another. RunUpdate walks partitions sequentially to stay
// polite to the archive and can chain an enrichment of the same years.
// Status and Replay work on a single partition file at a time.
package workflow

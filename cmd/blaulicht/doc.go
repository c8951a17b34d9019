// Command blaulicht keeps yearly Berlin police report partitions current and
// enriched.
//
// The update subcommand prepends reports published since the newest stored
// row. The enrich subcommand computes the description, English title and
// category of rows that still lack them; it only ever fills unset values, so
// a run stopped by a quota or a signal resumes where it left off. Both
// commands record a run in the SQLite ledger under state_dir, which the runs,
// failures and replay subcommands read back.
//
// Exit codes: 0 on success, 2 when a computator ran out of quota, 3 when a
// stored or listed timestamp could not be parsed, 1 for any other error.
package main

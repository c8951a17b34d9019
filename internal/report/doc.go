// Package report defines the police report record, the fixed partition
// schema, archive timestamp parsing, and the category taxonomy.
//
// A Report is created by the lister with date, title, link, and location and
// is filled in field by field (description, en_title, category) across runs.
// Unset is the only representation of "not computed yet"; legacy variants are
// recognized by IsBlankSentinel and converted by the partition store on load.
package report

// Package source reads the Berlin police press archive.
//
// ListPage parses one archive listing page into raw reports (date, title,
// link, location). FetchDescription extracts the report text from a report
// page. Both work on server-rendered HTML through golang.org/x/net/html; the
// archive does not require script execution.
package source

// Package partition implements the record store: one CSV file per year with
// the fixed report column schema.
//
// Loads tolerate older files. A UTF-8 byte order mark is stripped, absent
// columns are back-filled with the unset marker, the legacy "kategorie"
// header is read as "category", and sentinel spellings such as "nan" or
// "None" are canonicalized to the empty string. Saves always write the full
// header and publish through a temp file and rename, so a crash leaves either
// the previous or the new partition on disk.
//
// Each partition has an advisory lock file next to it so two processes never
// enrich or update the same year at once.
package partition

// Package updater keeps a yearly partition current with the append-only
// archive. It reads the newest stored timestamp, pages through the archive
// newest-first, and prepends every report that is strictly newer.
package updater

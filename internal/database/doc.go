// Package database provides the SQLite run journal of sitemirror.
//
// MirrorDB stores:
//   - one row per mirror run with its final counters and JSON report
//   - one row per dispatched resource with its local path and outcome
//
// The history command reads it back, and FindPathCollisions reports URLs
// that were written to the same local file during one run.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
//  1. The journal is a single file in the XDG data directory
//  2. The CGO-free driver keeps cross-compilation simple
//  3. WAL mode lets the history command read while a mirror writes
package database

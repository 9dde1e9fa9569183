// Package catalog keeps a SQLite history of capture attempts and assembled
// timelapses.
//
// Every attempt the scheduler makes is appended as one row, success or
// failure, so operators can inspect per-stream health without grepping logs.
// The catalog is diagnostic state: loops keep capturing when a write fails,
// and schema changes bump schemaVersion rather than migrating old rows.
package catalog

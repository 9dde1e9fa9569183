// Package logs reads run logs written by the capture daemon.
//
// Tail returns the last lines of a log, optionally filtered to one stream,
// together with the byte offset reached so Follow can continue from there.
// The daemon keeps lapsecam.log in the log directory pointing at the current
// run, which is what the CLI reads by default.
package logs

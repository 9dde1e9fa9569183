// Package daemon owns the long-running capture process lifecycle.
//
// It wraps the fleet coordinator with a flock-based single-instance lock in
// the log directory, exposes the operator stop, and reports per-stream
// status. Scheduling decisions live in the scheduler package; the daemon
// only starts, stops, and observes the loops.
package daemon

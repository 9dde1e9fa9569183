// Package scheduler runs the per-stream capture loop.
//
// Each cycle checks the capture Flag, runs one retry cycle, then picks the
// next delay: calendar backoff when the retry budget is exhausted, the rest
// of the steady interval during business hours, or the calendar's off-hours
// cadence otherwise. The loop sleeps until that delay elapses, the Flag stops,
// or the process context ends.
//
// Stopping the Flag never interrupts an attempt or a retry delay already in
// progress; it only prevents the next cycle. Cancelling the context kills
// in-flight grabbers.
package scheduler

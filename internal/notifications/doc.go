// Package notifications delivers capture events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Watcher sits between the scheduler loops
// and the catalog: it forwards every outcome to the next recorder and raises
// one alert when a stream crosses the configured consecutive-failure
// threshold, plus one when it produces a frame again.
package notifications

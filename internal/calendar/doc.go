// Package calendar maps a wall-clock instant and a failure count onto the
// delay before a stream's next capture attempt.
//
// Evaluation happens in a fixed UTC offset, never host-local time. Rules are
// applied in order: rest day, before the morning check, pre-open polling,
// business hours, after hours. Failure-driven backoff is capped by the
// configured maximum backoff; every decision is capped by the maximum delay.
//
// Policy is a value type with no hidden state. Identical inputs always return
// identical decisions.
package calendar

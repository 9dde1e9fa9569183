// Package capture runs one bounded frame-grabber invocation per attempt and
// classifies the result.
//
// An attempt succeeds only when the grabber exits zero and the frame exists
// on disk. Every other result is a classified failure (not found, transport,
// timeout, incomplete, canceled, other) and any partial frame is removed
// before the Outcome is returned. The grabber is killed when the configured
// timeout elapses; cancellation of the caller's context kills it too.
package capture

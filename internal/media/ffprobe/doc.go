// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: video stream properties (codec, geometry, frame counts)
//   - Format: container-level metadata (duration, size)
//
// Inspect executes ffprobe and returns the parsed Result. The timelapse
// assembler uses it to verify encoded videos, and doctor output uses it to
// sanity-check the newest captured frame.
package ffprobe

// Package timelapse glues captured frames into a video with ffmpeg.
//
// Assembly is a batch job run from the CLI. It never touches the scheduler:
// frames are selected by glob pattern, encoded in lexical order (frame names
// embed the capture timestamp), and the result is verified with ffprobe.
package timelapse

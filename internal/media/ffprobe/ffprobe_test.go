package ffprobe

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "pix_fmt": "yuv420p",
     "width": 1280, "height": 720, "avg_frame_rate": "24/1", "nb_frames": "240", "duration": "10.000000"}
  ],
  "format": {"filename": "out.mp4", "nb_streams": 1, "duration": "10.000000", "size": "524288", "format_name": "mov,mp4,m4a,3gp,3g2,mj2"}
}`

func TestParseAndHelpers(t *testing.T) {
	result, err := Parse([]byte(sampleJSON))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if result.VideoStreamCount() != 1 {
		t.Fatalf("expected 1 video stream, got %d", result.VideoStreamCount())
	}
	if result.Duration() != 10*time.Second {
		t.Fatalf("unexpected duration: %s", result.Duration())
	}
	if result.SizeBytes() != 524288 {
		t.Fatalf("unexpected size: %d", result.SizeBytes())
	}
	if result.FrameCount() != 240 {
		t.Fatalf("unexpected frame count: %d", result.FrameCount())
	}
	if result.FrameRate() != 24 {
		t.Fatalf("unexpected frame rate: %v", result.FrameRate())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw payload to be retained")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{
		Streams: []Stream{{CodecType: "video", AvgFrameRate: "0/0", NBFrames: "N/A"}},
		Format: Format{
			Duration: "bad",
			Size:     "-1",
		},
	}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.Duration() != 0 {
		t.Fatalf("expected zero duration, got %s", result.Duration())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
	if result.FrameCount() != 0 || result.FrameRate() != 0 {
		t.Fatalf("expected zero frame stats, got %d / %v", result.FrameCount(), result.FrameRate())
	}
	if _, ok := (Result{}).FirstVideo(); ok {
		t.Fatal("expected no video stream")
	}
}

func TestInspectRunsBinary(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "payload.json")
	if err := os.WriteFile(payload, []byte(sampleJSON), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	bin := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\ncat " + payload + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}

	result, err := Inspect(context.Background(), bin, "out.mp4")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.FrameCount() != 240 {
		t.Fatalf("unexpected frame count %d", result.FrameCount())
	}

	failing := filepath.Join(dir, "ffprobe-fail")
	if err := os.WriteFile(failing, []byte("#!/bin/sh\necho 'moov atom not found' >&2\nexit 1\n"), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	_, err = Inspect(context.Background(), failing, "out.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := Inspect(context.Background(), bin, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

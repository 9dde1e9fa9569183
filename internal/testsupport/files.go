package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// jpegHeader is enough of a JPEG preamble for tools that sniff magic bytes.
var jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0}

// WriteFile fills the target path with size bytes, creating parent
// directories. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFrame writes a small placeholder image at path.
func WriteFrame(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	payload := append(append([]byte(nil), jpegHeader...), bytes.Repeat([]byte{0x00}, 60)...)
	payload = append(payload, 0xFF, 0xD9)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write frame %s: %v", path, err)
	}
}

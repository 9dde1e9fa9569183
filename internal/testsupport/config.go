package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"lapsecam/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It applies any provided options after the defaults.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.FramesDir = filepath.Join(base, "frames")
	cfgVal.Paths.FallbackFramesDir = filepath.Join(base, "frames-fallback")
	cfgVal.Paths.TimelapseDir = filepath.Join(base, "timelapses")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Schedule.RetryDelayMillis = 0

	builder := &configBuilder{t: t, baseDir: base, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithStreams sets the stream URLs on the test config.
func WithStreams(urls ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Streams = append([]string(nil), urls...)
	}
}

// WithStubbedBinaries writes exit-0 stub executables for the provided names
// and prepends them to PATH. If names is empty, ffmpeg and ffprobe are
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteStub(b.t, binDir, name, "exit 0\n")
		}
		PrependPath(b.t, binDir)
	}
}

// WithGrabberScript installs a stub grabber whose body is script and points
// capture.grabber_binary at it.
func WithGrabberScript(script string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.GrabberBinary = WriteStub(b.t, filepath.Join(b.baseDir, "bin"), "grabber", script)
	}
}

// WriteStub writes an executable /bin/sh script named name into dir and
// returns its path. body follows the shebang line.
func WriteStub(t testing.TB, dir, name, body string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir bin dir: %v", err)
	}
	target := filepath.Join(dir, name)
	if err := os.WriteFile(target, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write stub %s: %v", name, err)
	}
	return target
}

// PrependPath puts dir at the front of PATH for the duration of the test.
func PrependPath(t testing.TB, dir string) {
	t.Helper()
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}

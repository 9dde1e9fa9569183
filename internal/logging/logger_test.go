package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lapsecam/internal/config"
	"lapsecam/internal/logging"
)

func TestConsoleLoggerLiftsComponentAndStream(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger = logging.NewComponentLogger(logger, "capture")
	logger = logging.WithContext(logging.WithStream(context.Background(), "stream02", 2), logger)
	logger.Info("frame captured", logging.String("path", "/frames/a b.jpg"), logging.Duration("duration", 1500*time.Millisecond))

	line := buf.String()
	if !strings.Contains(line, "INFO capture[stream02]: frame captured") {
		t.Fatalf("expected component and stream prefix, got %q", line)
	}
	if !strings.Contains(line, `path="/frames/a b.jpg"`) {
		t.Fatalf("expected quoted path, got %q", line)
	}
	if !strings.Contains(line, "stream_index=2") || !strings.Contains(line, "duration=1.5s") {
		t.Fatalf("expected stream_index and duration fields, got %q", line)
	}
	if strings.Contains(line, ".go:") {
		t.Fatalf("expected no caller information at info level, got %q", line)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("message with caller")
	if !strings.Contains(buf.String(), "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", buf.String())
	}
}

func TestJSONLoggerIncludesRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", RunID: "run-123", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.With(logging.String("extra", "value")).Warn("careful", logging.Error(errors.New("boom")))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v (%q)", err, buf.String())
	}
	if payload[logging.FieldRunID] != "run-123" {
		t.Fatalf("expected run_id, got %v", payload)
	}
	if payload["level"] != "warn" {
		t.Fatalf("expected lowercase level, got %v", payload["level"])
	}
	if payload["extra"] != "value" || payload["error"] != "boom" {
		t.Fatalf("unexpected attributes: %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", payload)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	logPath := filepath.Join(t.TempDir(), "runs", "lapsecam-test.log")

	logger, err := logging.NewFromConfig(&cfg, logPath, "abc")
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello file")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello file") || !strings.Contains(string(content), "run_id=abc") {
		t.Fatalf("unexpected log content %q", content)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "frames dir fallback", "frames_dir_fallback", logging.String(logging.FieldImpact, "frames land in fallback"))

	var payload map[string]any
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("decode json line: %v", err)
	}
	if payload[logging.FieldEventType] != "frames_dir_fallback" {
		t.Fatalf("expected event_type, got %v", payload)
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error_hint, got %v", payload)
	}
	if payload[logging.FieldImpact] != "frames land in fallback" {
		t.Fatalf("expected caller impact to win, got %v", payload[logging.FieldImpact])
	}
}

func TestStreamFromContext(t *testing.T) {
	if _, _, ok := logging.StreamFromContext(context.Background()); ok {
		t.Fatal("expected no stream on bare context")
	}
	ctx := logging.WithStream(context.Background(), "stream07", 7)
	label, index, ok := logging.StreamFromContext(ctx)
	if !ok || label != "stream07" || index != 7 {
		t.Fatalf("unexpected stream identity: %q %d %v", label, index, ok)
	}
}

// Package layout owns the on-disk naming of captured frames.
//
// Frames live under a base directory chosen at startup (primary with a
// fallback), one subdirectory per stream, named
// <label>/<label>_<YYYYMMDD>_<HHMMSS>.<ext> in the calendar's zone so that
// lexical order equals capture order.
package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"lapsecam/internal/stream"
)

const timestampLayout = "20060102_150405"

// Resolution records which frames directory was chosen at startup.
type Resolution struct {
	Dir          string
	UsedFallback bool
	// PrimaryErr is why the primary directory was rejected, if it was.
	PrimaryErr error
}

// Resolve returns primary when it can be created and written, otherwise
// fallback.
func Resolve(primary, fallback string) (Resolution, error) {
	primaryErr := ensureWritable(primary)
	if primaryErr == nil {
		return Resolution{Dir: primary}, nil
	}
	res := Resolution{UsedFallback: true, PrimaryErr: primaryErr}
	if strings.TrimSpace(fallback) == "" {
		return res, fmt.Errorf("frames directory %q unusable and no fallback configured: %w", primary, primaryErr)
	}
	if err := ensureWritable(fallback); err != nil {
		return res, fmt.Errorf("frames fallback directory %q unusable: %w", fallback, err)
	}
	res.Dir = fallback
	return res, nil
}

func ensureWritable(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return errors.New("directory not set")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := unix.Access(dir, unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("not writable: %w", err)
	}
	return nil
}

// Layout builds frame paths under a resolved base directory.
type Layout struct {
	Base      string
	Extension string
	Location  *time.Location
}

// New constructs a Layout. A nil location means UTC.
func New(base, extension string, loc *time.Location) *Layout {
	if loc == nil {
		loc = time.UTC
	}
	return &Layout{Base: base, Extension: strings.TrimPrefix(extension, "."), Location: loc}
}

// StreamDir is the directory holding one stream's frames.
func (l *Layout) StreamDir(s stream.Stream) string {
	return filepath.Join(l.Base, s.Label())
}

// FramePath returns the destination for a frame captured at t.
func (l *Layout) FramePath(s stream.Stream, t time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", s.Label(), t.In(l.Location).Format(timestampLayout), l.Extension)
	return filepath.Join(l.StreamDir(s), name)
}

// Glob returns the assembler input pattern matching every frame of s.
func (l *Layout) Glob(s stream.Stream) string {
	return filepath.Join(l.StreamDir(s), fmt.Sprintf("%s_*.%s", s.Label(), l.Extension))
}

// Frames lists the frames of s in capture order.
func (l *Layout) Frames(s stream.Stream) ([]string, error) {
	matches, err := filepath.Glob(l.Glob(s))
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}
	sort.Strings(matches)
	return matches, nil
}

package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// CurrentLogName is the pointer the daemon maintains to its active run log.
const CurrentLogName = "lapsecam.log"

const maxLineBytes = 1024 * 1024

// Options controls Tail and Follow.
type Options struct {
	// Limit is the number of trailing lines Tail returns; 0 returns none.
	Limit int
	// Match keeps only lines containing this substring, e.g. "stream02".
	Match string
	// Poll is how often Follow checks for new data. Defaults to 250ms.
	Poll time.Duration
}

// Result holds lines read and the offset just past them.
type Result struct {
	Lines  []string
	Offset int64
}

// Tail returns up to opts.Limit trailing lines of path that contain
// opts.Match. A missing file yields an empty result.
func Tail(path string, opts Options) (Result, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return Result{}, err
	}
	defer file.Close()

	var ring []string
	if opts.Limit > 0 {
		ring = make([]string, 0, opts.Limit)
	}
	offset, err := scan(file, func(line string) {
		if opts.Limit <= 0 || !matches(line, opts.Match) {
			return
		}
		if len(ring) == opts.Limit {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, line)
	})
	if err != nil {
		return Result{}, err
	}
	return Result{Lines: ring, Offset: offset}, nil
}

// Follow calls emit for every new matching line appended after offset until
// ctx ends. A file that shrinks (rotated or recreated) is reread from the
// start.
func Follow(ctx context.Context, path string, offset int64, opts Options, emit func(string)) error {
	poll := opts.Poll
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		next, err := readFrom(path, offset, func(line string) {
			if matches(line, opts.Match) {
				emit(line)
			}
		})
		if err != nil {
			return err
		}
		offset = next

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func readFrom(path string, offset int64, fn func(string)) (int64, error) {
	file, err := open(path)
	if err != nil || file == nil {
		return 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	read, err := scan(file, fn)
	if err != nil {
		return offset, err
	}
	return offset + read, nil
}

func open(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scan feeds complete lines to fn and returns the bytes consumed. A trailing
// partial line is left for the next read.
func scan(r io.Reader, fn func(string)) (int64, error) {
	reader := bufio.NewReaderSize(r, 64*1024)
	var consumed int64
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return consumed, nil
			}
			return consumed, fmt.Errorf("read log file: %w", err)
		}
		consumed += int64(len(line))
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		fn(strings.TrimRight(line, "\r\n"))
	}
}

func matches(line, match string) bool {
	return match == "" || strings.Contains(line, match)
}

package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Timelapse is one assembled video.
type Timelapse struct {
	ID        int64
	Pattern   string
	Output    string
	Frames    int
	FrameRate int
	Duration  time.Duration
	CreatedAt time.Time
}

const timelapseColumns = "id, pattern, output_path, frames, frame_rate, duration_ms, created_at"

// RecordTimelapse stores an assembled video and returns its id.
func (s *Store) RecordTimelapse(ctx context.Context, tl Timelapse) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`INSERT INTO timelapses (pattern, output_path, frames, frame_rate, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		tl.Pattern, tl.Output, tl.Frames, tl.FrameRate, tl.Duration.Milliseconds(), formatTime(tl.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("record timelapse: %w", err)
	}
	return res.LastInsertId()
}

// Timelapses lists assembled videos, newest first.
func (s *Store) Timelapses(ctx context.Context, limit int) ([]Timelapse, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+timelapseColumns+" FROM timelapses ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query timelapses: %w", err)
	}
	defer rows.Close()

	var out []Timelapse
	for rows.Next() {
		tl, err := scanTimelapse(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tl)
	}
	return out, rows.Err()
}

// TimelapseByID fetches one video record.
func (s *Store) TimelapseByID(ctx context.Context, id int64) (Timelapse, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+timelapseColumns+" FROM timelapses WHERE id = ?", id)
	tl, err := scanTimelapse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Timelapse{}, ErrNotFound
	}
	return tl, err
}

func scanTimelapse(scanner interface{ Scan(dest ...any) error }) (Timelapse, error) {
	var (
		tl         Timelapse
		durationMS int64
		createdRaw string
	)
	if err := scanner.Scan(&tl.ID, &tl.Pattern, &tl.Output, &tl.Frames, &tl.FrameRate, &durationMS, &createdRaw); err != nil {
		return Timelapse{}, err
	}
	tl.Duration = time.Duration(durationMS) * time.Millisecond
	tl.CreatedAt = parseTime(createdRaw)
	return tl, nil
}

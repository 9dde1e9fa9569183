package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"lapsecam/internal/capture"
)

// Capture is one recorded attempt.
type Capture struct {
	ID          int64
	StreamIndex int
	StreamLabel string
	StartedAt   time.Time
	Duration    time.Duration
	Success     bool
	Reason      capture.Reason
	FramePath   string
	Error       string
	ExitCode    int
}

// Status renders the attempt as "success" or "failure(<reason>)".
func (c Capture) Status() string {
	if c.Success {
		return "success"
	}
	return "failure(" + string(c.Reason) + ")"
}

// StreamStats aggregates history for one stream.
type StreamStats struct {
	StreamIndex   int
	StreamLabel   string
	Attempts      int
	Successes     int
	Failures      int
	LastAttempt   time.Time
	LastSuccess   time.Time
	ReasonsByKind map[capture.Reason]int
}

const captureColumns = "id, stream_index, stream_label, started_at, duration_ms, success, reason, frame_path, error_message, exit_code"

// RecordCapture appends one attempt outcome.
func (s *Store) RecordCapture(ctx context.Context, outcome capture.Outcome) error {
	var errMsg sql.NullString
	if outcome.Err != nil {
		errMsg = sql.NullString{String: outcome.Err.Error(), Valid: true}
	}
	var framePath sql.NullString
	if outcome.Success() && outcome.Path != "" {
		framePath = sql.NullString{String: outcome.Path, Valid: true}
	}
	success := 0
	if outcome.Success() {
		success = 1
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO captures (stream_index, stream_label, started_at, duration_ms, success, reason, frame_path, error_message, exit_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		outcome.Stream.Index,
		outcome.Stream.Label(),
		formatTime(outcome.Started),
		outcome.Duration.Milliseconds(),
		success,
		string(outcome.Reason),
		framePath,
		errMsg,
		outcome.ExitCode,
	)
	if err != nil {
		return fmt.Errorf("record capture: %w", err)
	}
	return nil
}

// RecentCaptures returns up to limit attempts, newest first. A streamIndex of
// zero includes every stream.
func (s *Store) RecentCaptures(ctx context.Context, streamIndex, limit int) ([]Capture, error) {
	if limit <= 0 {
		limit = 20
	}
	query := "SELECT " + captureColumns + " FROM captures"
	args := []any{}
	if streamIndex > 0 {
		query += " WHERE stream_index = ?"
		args = append(args, streamIndex)
	}
	query += " ORDER BY started_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	var captures []Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, err
		}
		captures = append(captures, c)
	}
	return captures, rows.Err()
}

// LastSuccess returns the newest successful attempt for a stream.
func (s *Store) LastSuccess(ctx context.Context, streamIndex int) (Capture, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+captureColumns+" FROM captures WHERE stream_index = ? AND success = 1 ORDER BY started_at DESC, id DESC LIMIT 1",
		streamIndex,
	)
	c, err := scanCapture(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Capture{}, ErrNotFound
	}
	return c, err
}

// Stats aggregates attempts per stream, ordered by stream index.
func (s *Store) Stats(ctx context.Context) ([]StreamStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT stream_index, MAX(stream_label), COUNT(1),
		       SUM(CASE WHEN success = 1 THEN 1 ELSE 0 END),
		       MAX(started_at),
		       MAX(CASE WHEN success = 1 THEN started_at END)
		FROM captures
		GROUP BY stream_index
		ORDER BY stream_index`)
	if err != nil {
		return nil, fmt.Errorf("capture stats: %w", err)
	}
	defer rows.Close()

	var stats []StreamStats
	byIndex := make(map[int]int)
	for rows.Next() {
		var (
			st          StreamStats
			lastAttempt sql.NullString
			lastSuccess sql.NullString
		)
		if err := rows.Scan(&st.StreamIndex, &st.StreamLabel, &st.Attempts, &st.Successes, &lastAttempt, &lastSuccess); err != nil {
			return nil, err
		}
		st.Failures = st.Attempts - st.Successes
		st.LastAttempt = parseTime(lastAttempt.String)
		st.LastSuccess = parseTime(lastSuccess.String)
		st.ReasonsByKind = make(map[capture.Reason]int)
		byIndex[st.StreamIndex] = len(stats)
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	reasonRows, err := s.db.QueryContext(ctx,
		`SELECT stream_index, reason, COUNT(1) FROM captures WHERE success = 0 GROUP BY stream_index, reason`)
	if err != nil {
		return nil, fmt.Errorf("capture failure reasons: %w", err)
	}
	defer reasonRows.Close()
	for reasonRows.Next() {
		var (
			index  int
			reason string
			count  int
		)
		if err := reasonRows.Scan(&index, &reason, &count); err != nil {
			return nil, err
		}
		if i, ok := byIndex[index]; ok {
			stats[i].ReasonsByKind[capture.Reason(reason)] = count
		}
	}
	return stats, reasonRows.Err()
}

// PruneCaptures deletes attempts that started before cutoff and returns the
// number removed.
func (s *Store) PruneCaptures(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx, "DELETE FROM captures WHERE started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune captures: %w", err)
	}
	return res.RowsAffected()
}

func scanCapture(scanner interface{ Scan(dest ...any) error }) (Capture, error) {
	var (
		c          Capture
		startedRaw string
		durationMS int64
		success    int
		reason     string
		framePath  sql.NullString
		errMsg     sql.NullString
	)
	if err := scanner.Scan(
		&c.ID,
		&c.StreamIndex,
		&c.StreamLabel,
		&startedRaw,
		&durationMS,
		&success,
		&reason,
		&framePath,
		&errMsg,
		&c.ExitCode,
	); err != nil {
		return Capture{}, err
	}
	c.StartedAt = parseTime(startedRaw)
	c.Duration = time.Duration(durationMS) * time.Millisecond
	c.Success = success == 1
	c.Reason = capture.Reason(reason)
	c.FramePath = framePath.String
	c.Error = errMsg.String
	return c, nil
}

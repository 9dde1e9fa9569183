package catalog_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lapsecam/internal/capture"
	"lapsecam/internal/catalog"
	"lapsecam/internal/stream"
	"lapsecam/internal/testsupport"
)

var (
	cam1 = stream.Stream{Index: 1, URL: "rtsp://cam1/live"}
	cam2 = stream.Stream{Index: 2, URL: "rtsp://cam2/live"}
)

func success(s stream.Stream, started time.Time) capture.Outcome {
	return capture.Outcome{
		Stream:   s,
		Path:     "/frames/" + s.Label() + ".jpg",
		Started:  started,
		Duration: 1500 * time.Millisecond,
	}
}

func failure(s stream.Stream, started time.Time, reason capture.Reason) capture.Outcome {
	return capture.Outcome{
		Stream:   s,
		Reason:   reason,
		Err:      errors.New("grabber exited with status 1"),
		Started:  started,
		Duration: 200 * time.Millisecond,
		ExitCode: 1,
	}
}

func TestOpenCreatesDatabaseInLogDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenCatalog(t, cfg)

	want := filepath.Join(cfg.Paths.LogDir, catalog.FileName)
	if store.Path() != want {
		t.Fatalf("expected path %q, got %q", want, store.Path())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := catalog.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	reopened.Close()
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	db.Close()

	if _, err := catalog.OpenPath(dbPath); !errors.Is(err, catalog.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestRecordAndListCaptures(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)

	outcomes := []capture.Outcome{
		success(cam1, base),
		failure(cam1, base.Add(time.Minute), capture.ReasonTimeout),
		success(cam2, base.Add(2*time.Minute)),
		failure(cam1, base.Add(3*time.Minute).Add(500*time.Millisecond), capture.ReasonTransport),
	}
	for _, o := range outcomes {
		if err := store.RecordCapture(ctx, o); err != nil {
			t.Fatalf("RecordCapture: %v", err)
		}
	}

	all, err := store.RecentCaptures(ctx, 0, 10)
	if err != nil {
		t.Fatalf("RecentCaptures: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 captures, got %d", len(all))
	}
	if all[0].Reason != capture.ReasonTransport || all[0].Status() != "failure(transport)" {
		t.Fatalf("expected newest first, got %+v", all[0])
	}
	if all[0].FramePath != "" || all[0].Error == "" || all[0].ExitCode != 1 {
		t.Fatalf("failure row missing details: %+v", all[0])
	}
	if !all[0].StartedAt.Equal(base.Add(3*time.Minute + 500*time.Millisecond)) {
		t.Fatalf("unexpected start time %s", all[0].StartedAt)
	}

	mine, err := store.RecentCaptures(ctx, 1, 2)
	if err != nil {
		t.Fatalf("RecentCaptures stream 1: %v", err)
	}
	if len(mine) != 2 || mine[0].StreamLabel != "stream01" || mine[1].Reason != capture.ReasonTimeout {
		t.Fatalf("unexpected stream 1 captures: %+v", mine)
	}

	last, err := store.LastSuccess(ctx, 1)
	if err != nil {
		t.Fatalf("LastSuccess: %v", err)
	}
	if !last.Success || last.FramePath != "/frames/stream01.jpg" || last.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected last success %+v", last)
	}
	if _, err := store.LastSuccess(ctx, 7); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatsAggregatesPerStream(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)

	for _, o := range []capture.Outcome{
		success(cam1, base),
		failure(cam1, base.Add(time.Minute), capture.ReasonTimeout),
		failure(cam1, base.Add(2*time.Minute), capture.ReasonTimeout),
		failure(cam2, base.Add(time.Minute), capture.ReasonNotFound),
	} {
		if err := store.RecordCapture(ctx, o); err != nil {
			t.Fatalf("RecordCapture: %v", err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(stats) != 2 {
		t.Fatalf("expected 2 streams, got %d", len(stats))
	}
	first := stats[0]
	if first.StreamIndex != 1 || first.Attempts != 3 || first.Successes != 1 || first.Failures != 2 {
		t.Fatalf("unexpected stream 1 stats %+v", first)
	}
	if !first.LastSuccess.Equal(base) || !first.LastAttempt.Equal(base.Add(2*time.Minute)) {
		t.Fatalf("unexpected stream 1 timestamps %+v", first)
	}
	if first.ReasonsByKind[capture.ReasonTimeout] != 2 {
		t.Fatalf("expected 2 timeouts, got %v", first.ReasonsByKind)
	}
	second := stats[1]
	if second.Successes != 0 || !second.LastSuccess.IsZero() || second.ReasonsByKind[capture.ReasonNotFound] != 1 {
		t.Fatalf("unexpected stream 2 stats %+v", second)
	}
}

func TestPruneCaptures(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2024, 3, 4, 11, 0, 0, 0, time.UTC)

	for i := range 5 {
		if err := store.RecordCapture(ctx, success(cam1, base.AddDate(0, 0, i))); err != nil {
			t.Fatalf("RecordCapture: %v", err)
		}
	}
	removed, err := store.PruneCaptures(ctx, base.AddDate(0, 0, 3))
	if err != nil {
		t.Fatalf("PruneCaptures: %v", err)
	}
	if removed != 3 {
		t.Fatalf("expected 3 rows pruned, got %d", removed)
	}
	left, _ := store.RecentCaptures(ctx, 0, 10)
	if len(left) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(left))
	}
}

func TestTimelapses(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	id, err := store.RecordTimelapse(ctx, catalog.Timelapse{
		Pattern:   "/frames/stream01/*.jpg",
		Output:    "/videos/stream01.mp4",
		Frames:    240,
		FrameRate: 24,
		Duration:  10 * time.Second,
		CreatedAt: time.Date(2024, 3, 4, 21, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("RecordTimelapse: %v", err)
	}

	got, err := store.TimelapseByID(ctx, id)
	if err != nil {
		t.Fatalf("TimelapseByID: %v", err)
	}
	if got.Frames != 240 || got.Duration != 10*time.Second || got.Output != "/videos/stream01.mp4" {
		t.Fatalf("unexpected timelapse %+v", got)
	}

	list, err := store.Timelapses(ctx, 5)
	if err != nil {
		t.Fatalf("Timelapses: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Fatalf("unexpected list %+v", list)
	}
	if _, err := store.TimelapseByID(ctx, id+1); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

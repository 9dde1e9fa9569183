package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lapsecam/internal/calendar"
	"lapsecam/internal/catalog"
	"lapsecam/internal/daemon"
	"lapsecam/internal/preflight"
	"lapsecam/internal/stream"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var streamIndex int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration health, capture activity, and per-stream totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			streams := stream.FromURLs(cfg.Streams)
			var detail stream.Stream
			if streamIndex != 0 {
				s, ok := stream.ByIndex(streams, streamIndex)
				if !ok {
					return fmt.Errorf("stream %d not configured", streamIndex)
				}
				detail = s
			}
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}

			var report statusReport
			activity := report.section("Capture")
			running, state := captureProcessState(cfg.Paths.LogDir)
			if running {
				activity.add("Capture process", statusOK, "%s", state)
			} else {
				activity.add("Capture process", statusInfo, "%s", state)
			}
			if policy, err := calendar.FromConfig(cfg.Schedule); err == nil {
				now := time.Now().In(policy.Location)
				decision := policy.Decide(now, 0)
				kind := statusInfo
				if policy.InBusinessHours(now) {
					kind = statusOK
				}
				activity.add("Calendar", kind, "%s at %s; next check in %s",
					decision.Reason, formatWhen(now, policy.Location), formatDelay(decision.Delay))
			}

			checks := report.section("Preflight")
			for _, result := range preflight.RunAll(cfg) {
				checks.add(result.Name, preflightKind(result), "%s", result.Detail)
			}

			addStreamStatus(cmd, ctx, report.section("Streams"), streams, loc)
			if streamIndex != 0 {
				addStreamDetail(cmd, ctx, report.section(detail.Label()), detail, loc)
			}

			fmt.Fprintln(cmd.OutOrStdout(), report.render(shouldColorize(cmd.OutOrStdout())))
			return nil
		},
	}
	cmd.Flags().IntVarP(&streamIndex, "stream", "s", 0, "Also show the latest frame and attempt for this stream index")
	return cmd
}

func preflightKind(result preflight.Result) statusKind {
	switch {
	case result.Passed:
		return statusOK
	case result.Optional:
		return statusWarn
	default:
		return statusError
	}
}

// captureProcessState probes the run lock without holding it.
func captureProcessState(logDir string) (bool, string) {
	lock := flock.New(filepath.Join(logDir, daemon.LockFileName))
	acquired, err := lock.TryLock()
	if err != nil {
		return false, fmt.Sprintf("lock check failed: %v", err)
	}
	if acquired {
		_ = lock.Unlock()
		return false, "Not running"
	}
	pid := readPID(filepath.Join(logDir, "lapsecam.pid"))
	if pid == "" {
		return true, "Running"
	}
	return true, "Running (pid " + pid + ")"
}

func readPID(path string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(raw))
}

func addStreamStatus(cmd *cobra.Command, ctx *commandContext, section *statusSection, streams []stream.Stream, loc *time.Location) {
	if len(streams) == 0 {
		section.add("Streams", statusError, "none configured")
		return
	}
	store, err := ctx.openCatalog()
	if err != nil {
		section.add("Catalog", statusWarn, "%s", err.Error())
		return
	}
	defer store.Close()

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		section.add("Catalog", statusWarn, "%s", err.Error())
		return
	}
	byIndex := make(map[int]catalog.StreamStats, len(stats))
	for _, st := range stats {
		byIndex[st.StreamIndex] = st
	}

	for _, s := range streams {
		st, ok := byIndex[s.Index]
		if !ok || st.Attempts == 0 {
			section.add(s.Label(), statusInfo, "no attempts recorded")
			continue
		}
		section.add(s.Label(), streamKind(st), "%d/%d ok (%s); last success %s",
			st.Successes, st.Attempts, successRate(st), formatWhen(st.LastSuccess, loc))
	}
}

// streamKind is ERROR for a stream that never captured and WARN when its
// newest attempt failed.
func streamKind(st catalog.StreamStats) statusKind {
	switch {
	case st.LastSuccess.IsZero():
		return statusError
	case st.LastAttempt.After(st.LastSuccess):
		return statusWarn
	default:
		return statusOK
	}
}

func addStreamDetail(cmd *cobra.Command, ctx *commandContext, section *statusSection, s stream.Stream, loc *time.Location) {
	section.add("URL", statusInfo, "%s", s.URL)
	store, err := ctx.openCatalog()
	if err != nil {
		section.add("Catalog", statusWarn, "%s", err.Error())
		return
	}
	defer store.Close()

	last, err := store.LastSuccess(cmd.Context(), s.Index)
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		section.add("Latest frame", statusError, "none captured")
	case err != nil:
		section.add("Latest frame", statusWarn, "%s", err.Error())
	default:
		section.add("Latest frame", statusOK, "%s at %s", last.FramePath, formatWhen(last.StartedAt, loc))
	}

	recent, err := store.RecentCaptures(cmd.Context(), s.Index, 1)
	if err != nil || len(recent) == 0 {
		return
	}
	attempt := recent[0]
	if attempt.Success {
		section.add("Latest attempt", statusOK, "%s took %s", formatWhen(attempt.StartedAt, loc), formatDelay(attempt.Duration))
		return
	}
	section.add("Latest attempt", statusWarn, "%s %s: %s",
		formatWhen(attempt.StartedAt, loc), attempt.Status(), truncate(attempt.Error, 80))
}

package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lapsecam/internal/capture"
	"lapsecam/internal/catalog"
)

func newCapturesCommand(ctx *commandContext) *cobra.Command {
	var streamIndex int
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Show recent capture attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			captures, err := store.RecentCaptures(cmd.Context(), streamIndex, limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, captures)
			}
			out := cmd.OutOrStdout()
			if len(captures) == 0 {
				fmt.Fprintln(out, "No capture attempts recorded")
				return nil
			}
			list := captureListing(captures, loc)
			if limit > 0 && len(captures) == limit {
				list.caption = fmt.Sprintf("Newest %d attempts; raise --limit for more", limit)
			}
			fmt.Fprintln(out, list.render())
			return nil
		},
	}

	cmd.Flags().IntVarP(&streamIndex, "stream", "s", 0, "Only show this stream index")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	cmd.AddCommand(newCaptureStatsCommand(ctx))
	return cmd
}

func captureListing(captures []catalog.Capture, loc *time.Location) *listing {
	list := newListing(
		column{title: "Time"},
		column{title: "Stream"},
		column{title: "Status"},
		column{title: "Took", numeric: true},
		column{title: "Frame / Error"},
	)
	for _, c := range captures {
		detail := c.FramePath
		if !c.Success {
			detail = truncate(c.Error, 60)
		}
		list.add(formatWhen(c.StartedAt, loc), c.StreamLabel, c.Status(), formatDelay(c.Duration), detail)
	}
	return list
}

func newCaptureStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-stream capture totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, stats)
			}
			out := cmd.OutOrStdout()
			if len(stats) == 0 {
				fmt.Fprintln(out, "No capture attempts recorded")
				return nil
			}
			list := newListing(
				column{title: "Stream"},
				column{title: "Attempts", numeric: true},
				column{title: "OK", numeric: true},
				column{title: "Failed", numeric: true},
				column{title: "Rate", numeric: true},
				column{title: "Last Success"},
				column{title: "Top Failure"},
			)
			for _, st := range stats {
				list.add(
					st.StreamLabel,
					strconv.Itoa(st.Attempts),
					strconv.Itoa(st.Successes),
					strconv.Itoa(st.Failures),
					successRate(st),
					formatWhen(st.LastSuccess, loc),
					topReason(st.ReasonsByKind),
				)
			}
			fmt.Fprintln(out, list.render())
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func successRate(st catalog.StreamStats) string {
	if st.Attempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", float64(st.Successes)*100/float64(st.Attempts))
}

// topReason names the most frequent failure reason, ties broken by name.
func topReason(reasons map[capture.Reason]int) string {
	if len(reasons) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(reasons))
	for reason := range reasons {
		keys = append(keys, string(reason))
	}
	sort.Strings(keys)
	best := keys[0]
	for _, key := range keys[1:] {
		if reasons[capture.Reason(key)] > reasons[capture.Reason(best)] {
			best = key
		}
	}
	return fmt.Sprintf("%s (%d)", best, reasons[capture.Reason(best)])
}

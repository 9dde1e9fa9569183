package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lapsecam/internal/calendar"
)

// maxPreviewRows bounds schedule previews over long windows.
const maxPreviewRows = 200

type schedulePreviewRow struct {
	At       time.Time       `json:"at"`
	Reason   calendar.Reason `json:"reason"`
	DelayMS  int64           `json:"delay_ms"`
	Next     time.Time       `json:"next"`
	Failures int             `json:"failures"`
}

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	var at string
	var failures int
	var hours int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Preview the capture calendar",
		Long: `Walk the calendar forward from a start time and show each scheduling
decision a capture loop would make, assuming every capture takes no time and
the failure count stays fixed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			policy, err := calendar.FromConfig(cfg.Schedule)
			if err != nil {
				return err
			}
			start := time.Now()
			if strings.TrimSpace(at) != "" {
				start, err = time.Parse(time.RFC3339, strings.TrimSpace(at))
				if err != nil {
					return fmt.Errorf("parse --at: %w", err)
				}
			}
			if hours <= 0 {
				return fmt.Errorf("--hours must be positive")
			}
			if failures < 0 {
				return fmt.Errorf("--failures must not be negative")
			}

			rows := previewSchedule(policy, start, time.Duration(hours)*time.Hour, failures)
			if jsonOutput {
				return writeJSON(cmd, rows)
			}

			list := newListing(
				column{title: "Time"},
				column{title: "Day"},
				column{title: "Reason"},
				column{title: "Delay", numeric: true},
				column{title: "Next"},
			)
			for _, row := range rows {
				list.add(
					formatWhen(row.At, policy.Location),
					row.At.In(policy.Location).Weekday().String()[:3],
					string(row.Reason),
					formatDelay(time.Duration(row.DelayMS)*time.Millisecond),
					formatWhen(row.Next, policy.Location),
				)
			}
			if len(rows) == maxPreviewRows {
				list.caption = fmt.Sprintf("Preview truncated at %d decisions", maxPreviewRows)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Calendar zone %s, rest day %s, failures %d\n",
				cfg.Schedule.UTCOffset, policy.RestDay, failures)
			fmt.Fprintln(out, list.render())
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Start time in RFC3339 (defaults to now)")
	cmd.Flags().IntVar(&failures, "failures", 0, "Consecutive failure count to assume")
	cmd.Flags().IntVar(&hours, "hours", 24, "Length of the preview window in hours")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func previewSchedule(policy calendar.Policy, start time.Time, window time.Duration, failures int) []schedulePreviewRow {
	end := start.Add(window)
	rows := make([]schedulePreviewRow, 0)
	for t := start; t.Before(end) && len(rows) < maxPreviewRows; {
		decision := policy.Decide(t, failures)
		step := decision.Delay
		if step <= 0 {
			step = max(policy.SteadyInterval, time.Second)
		}
		next := t.Add(step)
		rows = append(rows, schedulePreviewRow{
			At:       t,
			Reason:   decision.Reason,
			DelayMS:  decision.Delay.Milliseconds(),
			Next:     next,
			Failures: failures,
		})
		t = next
	}
	return rows
}

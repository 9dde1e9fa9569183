package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"lapsecam/internal/catalog"
	"lapsecam/internal/layout"
	"lapsecam/internal/logging"
	"lapsecam/internal/notifications"
	"lapsecam/internal/timelapse"
)

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var streamIndex int
	var frameRate int
	var output string
	var pattern string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble a stream's captured frames into a timelapse video",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			s, err := ctx.streamByIndex(streamIndex)
			if err != nil {
				return err
			}
			loc, err := cfg.Schedule.Location()
			if err != nil {
				return err
			}

			if pattern == "" {
				frames, err := layout.Resolve(cfg.Paths.FramesDir, cfg.Paths.FallbackFramesDir)
				if err != nil {
					return fmt.Errorf("resolve frames directory: %w", err)
				}
				pattern = layout.New(frames.Dir, cfg.Capture.ImageExtension, loc).Glob(s)
			}
			if output == "" {
				output = timelapse.OutputPath(cfg.Paths.TimelapseDir, s, time.Now().In(loc))
			}
			if frameRate <= 0 {
				frameRate = cfg.Timelapse.FrameRate
			}

			logger := ctx.cliLogger(cmd.ErrOrStderr())
			assembler := timelapse.NewAssembler(timelapse.OptionsFromConfig(cfg.Timelapse), logger)
			result, err := assembler.Assemble(cmd.Context(), timelapse.Request{
				Pattern:   pattern,
				FrameRate: frameRate,
				Output:    output,
			})
			if err != nil {
				return err
			}

			record := catalog.Timelapse{
				Pattern:   pattern,
				Output:    result.Output,
				Frames:    result.Frames,
				FrameRate: frameRate,
				Duration:  result.Duration,
				CreatedAt: time.Now(),
			}
			if err := recordTimelapse(cmd.Context(), ctx, record); err != nil {
				logging.WarnWithContext(logger, "timelapse not recorded in catalog", "catalog_record_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "video missing from lapsecam timelapses"),
				)
			}

			notifier := notifications.NewService(cfg)
			if err := notifier.Publish(cmd.Context(), notifications.EventTimelapseAssembled, notifications.Payload{
				"stream": s.Label(),
				"frames": result.Frames,
				"output": result.Output,
			}); err != nil {
				logging.WarnWithContext(logger, "timelapse notification not delivered", "notification_failed", logging.Error(err))
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"stream":      s.Label(),
					"output":      result.Output,
					"frames":      result.Frames,
					"frame_rate":  frameRate,
					"duration_ms": result.Duration.Milliseconds(),
					"size_bytes":  result.Size,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Assembled %d frames from %s into %s\n", result.Frames, s.Label(), result.Output)
			fmt.Fprintf(out, "Duration %s at %d fps\n", formatDelay(result.Duration), frameRate)
			return nil
		},
	}

	cmd.Flags().IntVarP(&streamIndex, "stream", "s", 0, "Stream index to assemble (1-based)")
	cmd.Flags().IntVar(&frameRate, "fps", 0, "Output frame rate (defaults to timelapse.frame_rate)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output video path")
	cmd.Flags().StringVar(&pattern, "pattern", "", "Frame glob pattern (defaults to the stream's frame directory)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("stream")
	return cmd
}

func recordTimelapse(cmdCtx context.Context, ctx *commandContext, record catalog.Timelapse) error {
	store, err := ctx.openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()
	_, err = store.RecordTimelapse(cmdCtx, record)
	return err
}

func newTimelapsesCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var id int64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "timelapses",
		Short: "List assembled timelapse videos",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openCatalog()
			if err != nil {
				return err
			}
			defer store.Close()

			if id > 0 {
				item, err := store.TimelapseByID(cmd.Context(), id)
				if errors.Is(err, catalog.ErrNotFound) {
					return fmt.Errorf("timelapse %d not found", id)
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				printTimelapse(cmd.OutOrStdout(), item)
				return nil
			}

			items, err := store.Timelapses(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, items)
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No timelapses recorded")
				return nil
			}
			list := newListing(
				column{title: "ID", numeric: true},
				column{title: "Created"},
				column{title: "Frames", numeric: true},
				column{title: "FPS", numeric: true},
				column{title: "Length", numeric: true},
				column{title: "Output"},
			)
			for _, tl := range items {
				list.add(
					strconv.FormatInt(tl.ID, 10),
					formatWhen(tl.CreatedAt, time.Local),
					strconv.Itoa(tl.Frames),
					strconv.Itoa(tl.FrameRate),
					formatDelay(tl.Duration),
					tl.Output,
				)
			}
			fmt.Fprintln(out, list.render())
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to show")
	cmd.Flags().Int64Var(&id, "id", 0, "Show a single timelapse by ID")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func printTimelapse(out io.Writer, tl catalog.Timelapse) {
	fmt.Fprintf(out, "Timelapse %d\n", tl.ID)
	fmt.Fprintf(out, "  Created:  %s\n", formatWhen(tl.CreatedAt, time.Local))
	fmt.Fprintf(out, "  Frames:   %d from %s\n", tl.Frames, tl.Pattern)
	fmt.Fprintf(out, "  Length:   %s at %d fps\n", formatDelay(tl.Duration), tl.FrameRate)
	fmt.Fprintf(out, "  Output:   %s\n", tl.Output)
}

package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"lapsecam/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var streamIndex int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the current run log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := logs.Options{Limit: lines}
			if streamIndex > 0 {
				s, err := ctx.streamByIndex(streamIndex)
				if err != nil {
					return err
				}
				opts.Match = s.Label()
			}

			path := filepath.Join(cfg.Paths.LogDir, logs.CurrentLogName)
			result, err := logs.Tail(path, opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, line := range result.Lines {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}
			return logs.Follow(cmd.Context(), path, result.Offset, opts, func(line string) {
				fmt.Fprintln(out, line)
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines until interrupted")
	cmd.Flags().IntVarP(&streamIndex, "stream", "s", 0, "Only show lines for this stream index")
	return cmd
}

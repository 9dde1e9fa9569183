package main

import (
	"github.com/spf13/cobra"

	"lapsecam/internal/daemonrun"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var logLevel string
	var development bool
	var noConsole bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Capture frames from every configured stream in the foreground",
		Long: `Start one capture loop per configured stream and block until they exit.

Type "stop" and press enter to stop capturing. Loops finish any capture in
progress and exit at their next scheduling point. SIGINT or SIGTERM stops
immediately, killing in-flight grabbers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			opts := daemonrun.Options{
				LogLevel:    logLevel,
				Development: development,
				Prompt:      cmd.OutOrStdout(),
			}
			if !noConsole {
				opts.Stdin = cmd.InOrStdin()
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level for this run")
	cmd.Flags().BoolVar(&development, "dev", false, "Include source locations in log records")
	cmd.Flags().BoolVar(&noConsole, "no-console", false, "Do not read operator commands from stdin")
	return cmd
}

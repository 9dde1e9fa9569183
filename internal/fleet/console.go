package fleet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"lapsecam/internal/logging"
	"lapsecam/internal/scheduler"
)

// Operator commands recognized on the console. StatusCommand is only
// available when Console.Status is set.
const (
	StopCommand   = "stop"
	StatusCommand = "status"
)

// Stopper is implemented by Coordinator.
type Stopper interface {
	Stop()
}

// Console reads operator commands line by line. Prompt, when set, receives
// acknowledgements for the operator.
type Console struct {
	In     io.Reader
	Target Stopper
	Status func() []scheduler.Snapshot
	Logger *slog.Logger
	Prompt io.Writer
}

// Run reads lines until "stop", end of input, or ctx ends between lines. A
// read already blocked on In is not interrupted by ctx; callers running it
// against a terminal should not wait for it to return.
func (c *Console) Run(ctx context.Context) error {
	logger := logging.NewComponentLogger(c.Logger, "console")
	scanner := bufio.NewScanner(c.In)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(line, StatusCommand) && c.Status != nil {
			for _, snap := range c.Status() {
				c.say(DescribeSnapshot(snap))
			}
			continue
		}
		if strings.EqualFold(line, StopCommand) {
			logger.Info("operator stop received", logging.String(logging.FieldEventType, "operator_stop"))
			c.say("stopping: loops exit after in-flight captures finish")
			c.Target.Stop()
			return nil
		}
		logger.Info("unrecognized operator command ignored",
			logging.String(logging.FieldEventType, "operator_command_ignored"),
			logging.String("input", line),
		)
		c.say(fmt.Sprintf("unknown command %q; type %q to stop capturing", line, StopCommand))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read operator input: %w", err)
	}
	logger.Debug("operator input closed", logging.String(logging.FieldEventType, "operator_input_closed"))
	return nil
}

// DescribeSnapshot renders one loop's state as a single console line.
func DescribeSnapshot(s scheduler.Snapshot) string {
	line := fmt.Sprintf("%s %s failures=%d cycles=%d", s.Stream.Label(), s.State, s.Failures, s.Cycles)
	if !s.LastOutcome.Started.IsZero() {
		line += " last=" + s.LastOutcome.Status()
	}
	if !s.NextRun.IsZero() {
		line += fmt.Sprintf(" next=%s (%s)", s.NextRun.Format("2006-01-02 15:04:05"), s.LastDecision.Reason)
	}
	return line
}

func (c *Console) say(msg string) {
	if c.Prompt != nil {
		fmt.Fprintln(c.Prompt, msg)
	}
}

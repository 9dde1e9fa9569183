package capture

import (
	"errors"
	"strings"
	"time"

	"lapsecam/internal/stream"
)

// Reason classifies a failed attempt. Success carries ReasonNone.
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonNotFound   Reason = "not_found"
	ReasonTransport  Reason = "transport"
	ReasonTimeout    Reason = "timeout"
	ReasonIncomplete Reason = "incomplete"
	ReasonCanceled   Reason = "canceled"
	ReasonOther      Reason = "other"
)

var (
	// ErrTimeout marks an attempt whose grabber exceeded the capture timeout.
	ErrTimeout = errors.New("capture timed out")
	// ErrIncomplete marks a grabber that exited cleanly without producing a frame.
	ErrIncomplete = errors.New("grabber produced no frame")
)

// Outcome is the result of one capture attempt. It is consumed by the retry
// controller and recorded in the catalog.
type Outcome struct {
	Stream   stream.Stream
	Path     string
	Reason   Reason
	Err      error
	Started  time.Time
	Duration time.Duration
	ExitCode int
	Stderr   string
}

// Success reports whether the attempt produced a frame.
func (o Outcome) Success() bool {
	return o.Reason == ReasonNone && o.Err == nil
}

// Canceled reports whether the attempt was cut short by shutdown rather
// than failing on its own.
func (o Outcome) Canceled() bool {
	return o.Reason == ReasonCanceled
}

// Status renders the outcome as "success" or "failure(<reason>)".
func (o Outcome) Status() string {
	if o.Success() {
		return "success"
	}
	return "failure(" + string(o.Reason) + ")"
}

var notFoundPatterns = []string{
	"404",
	"not found",
	"no such file",
	"name or service not known",
	"could not resolve",
	"failed to resolve",
	"nodename nor servname",
	"no address associated",
}

var transportPatterns = []string{
	"connection refused",
	"connection timed out",
	"connection reset",
	"network is unreachable",
	"no route to host",
	"broken pipe",
	"end of file",
	"i/o error",
	"invalid data found",
	"method describe failed",
	"method setup failed",
	"nonmatching transport",
	"unauthorized",
	"forbidden",
	"server returned 5",
}

// Classify maps grabber diagnostics onto a failure reason.
func Classify(stderr string) Reason {
	text := strings.ToLower(stderr)
	for _, pattern := range notFoundPatterns {
		if strings.Contains(text, pattern) {
			return ReasonNotFound
		}
	}
	for _, pattern := range transportPatterns {
		if strings.Contains(text, pattern) {
			return ReasonTransport
		}
	}
	return ReasonOther
}

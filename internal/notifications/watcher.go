package notifications

import (
	"context"
	"log/slog"
	"sync"

	"lapsecam/internal/capture"
	"lapsecam/internal/logging"
)

// Recorder matches scheduler.Recorder.
type Recorder interface {
	RecordCapture(ctx context.Context, outcome capture.Outcome) error
}

// Watcher counts consecutive failures per stream from recorded outcomes and
// publishes degraded/recovered events. Each stream alerts at most once per
// outage.
type Watcher struct {
	next      Recorder
	service   Service
	threshold int
	logger    *slog.Logger

	mu      sync.Mutex
	streams map[int]*streamHealth
}

type streamHealth struct {
	failures int
	alerted  bool
}

// NewWatcher wraps next, which may be nil. threshold below 1 is treated as 1.
func NewWatcher(next Recorder, service Service, threshold int, logger *slog.Logger) *Watcher {
	if service == nil {
		service = noopService{}
	}
	return &Watcher{
		next:      next,
		service:   service,
		threshold: max(threshold, 1),
		logger:    logging.NewComponentLogger(logger, "notifications"),
		streams:   make(map[int]*streamHealth),
	}
}

// RecordCapture forwards outcome to the wrapped recorder and then evaluates
// the stream's health. Notification failures are logged, never returned.
func (w *Watcher) RecordCapture(ctx context.Context, outcome capture.Outcome) error {
	var err error
	if w.next != nil {
		err = w.next.RecordCapture(ctx, outcome)
	}

	event, payload, ok := w.observe(outcome)
	if ok {
		if pubErr := w.service.Publish(ctx, event, payload); pubErr != nil {
			logging.WarnWithContext(w.logger, "notification not delivered", "notification_failed",
				logging.String("event", string(event)),
				logging.Int("stream_index", outcome.Stream.Index),
				logging.Error(pubErr),
				logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic and network access"),
			)
		}
	}
	return err
}

func (w *Watcher) observe(outcome capture.Outcome) (Event, Payload, bool) {
	if outcome.Canceled() {
		return "", nil, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	health := w.streams[outcome.Stream.Index]
	if health == nil {
		health = &streamHealth{}
		w.streams[outcome.Stream.Index] = health
	}

	if outcome.Success() {
		failures, alerted := health.failures, health.alerted
		health.failures, health.alerted = 0, false
		if !alerted {
			return "", nil, false
		}
		return EventStreamRecovered, Payload{
			"stream":   outcome.Stream.Label(),
			"failures": failures,
		}, true
	}

	health.failures++
	if health.alerted || health.failures < w.threshold {
		return "", nil, false
	}
	health.alerted = true
	payload := Payload{
		"stream":   outcome.Stream.Label(),
		"failures": health.failures,
		"reason":   string(outcome.Reason),
	}
	if outcome.Err != nil {
		payload["error"] = outcome.Err.Error()
	}
	return EventStreamDegraded, payload, true
}

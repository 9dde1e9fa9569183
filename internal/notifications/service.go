package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lapsecam/internal/config"
)

const userAgent = "lapsecam/0.1"

// Event identifies a notification type.
type Event string

const (
	EventStreamDegraded     Event = "stream_degraded"
	EventStreamRecovered    Event = "stream_recovered"
	EventTimelapseAssembled Event = "timelapse_assembled"
	EventCaptureStopped     Event = "capture_stopped"
	EventTestNotification   Event = "test"
)

// Payload carries event-specific values keyed by name.
type Payload map[string]any

// Service publishes events.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}
	timeout := cfg.Notifications.RequestTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether svc sends anything.
func Enabled(svc Service) bool {
	_, noop := svc.(noopService)
	return svc != nil && !noop
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventStreamDegraded:
		stream := payload.text("stream")
		body := fmt.Sprintf("%s has failed %s consecutive captures", stream, payload.text("failures"))
		if reason := payload.text("reason"); reason != "" {
			body += fmt.Sprintf(" (last: %s)", reason)
		}
		if detail := payload.text("error"); detail != "" {
			body += "\n" + detail
		}
		return message{
			title:    "lapsecam - Stream Degraded",
			body:     body,
			tags:     []string{"lapsecam", "stream", "degraded"},
			priority: "high",
		}, true
	case EventStreamRecovered:
		return message{
			title: "lapsecam - Stream Recovered",
			body:  fmt.Sprintf("%s is capturing again after %s failed attempts", payload.text("stream"), payload.text("failures")),
			tags:  []string{"lapsecam", "stream", "recovered"},
		}, true
	case EventTimelapseAssembled:
		body := fmt.Sprintf("%s: %s frames assembled", payload.text("stream"), payload.text("frames"))
		if output := payload.text("output"); output != "" {
			body += "\nFile: " + output
		}
		return message{
			title: "lapsecam - Timelapse Ready",
			body:  body,
			tags:  []string{"lapsecam", "timelapse", "completed"},
		}, true
	case EventCaptureStopped:
		return message{
			title:    "lapsecam - Capture Stopped",
			body:     fmt.Sprintf("Capture stopped for %s streams", payload.text("streams")),
			tags:     []string{"lapsecam", "capture", "stopped"},
			priority: "low",
		}, true
	case EventTestNotification:
		return message{
			title:    "lapsecam - Test",
			body:     "Notification system test",
			tags:     []string{"lapsecam", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func (p Payload) text(key string) string {
	if p == nil {
		return ""
	}
	value, ok := p[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if msg.title != "" {
		req.Header.Set("Title", msg.title)
	}
	if len(msg.tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.tags, ","))
	}
	if msg.priority != "" && msg.priority != "default" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

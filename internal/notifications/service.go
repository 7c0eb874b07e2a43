package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"screencap/internal/config"
)

const userAgent = "screencap/0.1.0"

// Event names a notification-worthy milestone.
type Event string

const (
	EventRecordingStopped    Event = "recording_stopped"
	EventRecordingSaved      Event = "recording_saved"
	EventConversionCompleted Event = "conversion_completed"
	EventError               Event = "error"
	EventTest                Event = "test"
)

// Payload carries event-specific values. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events. Implementations must be safe for concurrent use.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	if cfg == nil {
		return noopService{}
	}
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		toggles:  cfg.Notifications,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	toggles  config.Notifications
}

func (n *ntfyService) Publish(ctx context.Context, event Event, p Payload) error {
	if !n.enabled(event) {
		return nil
	}
	data, ok := format(event, p)
	if !ok {
		return nil
	}
	return n.send(ctx, data)
}

func (n *ntfyService) enabled(event Event) bool {
	switch event {
	case EventRecordingStopped, EventConversionCompleted:
		return n.toggles.Recording
	case EventRecordingSaved:
		return n.toggles.Library
	case EventError:
		return n.toggles.Errors
	case EventTest:
		return true
	default:
		return false
	}
}

func format(event Event, p Payload) (payload, bool) {
	switch event {
	case EventRecordingStopped:
		message := fmt.Sprintf("Recording stopped after %s", formatSeconds(intValue(p["durationSeconds"])))
		if trigger := stringValue(p["trigger"]); trigger == "host" {
			message += " (capture ended by the system)"
		}
		return payload{
			title:   "Screencap - Recording Stopped",
			message: message,
			tags:    []string{"screencap", "recording", "stopped"},
		}, true
	case EventRecordingSaved:
		message := fmt.Sprintf("Saved %s", stringValue(p["path"]))
		if kind := stringValue(p["kind"]); kind != "" {
			message = fmt.Sprintf("Saved %s recording: %s", kind, stringValue(p["path"]))
		}
		return payload{
			title:   "Screencap - Saved",
			message: message,
			tags:    []string{"screencap", "library", "saved"},
		}, true
	case EventConversionCompleted:
		return payload{
			title:   "Screencap - Converted",
			message: fmt.Sprintf("MP4 ready (%s)", formatBytes(intValue(p["bytes"]))),
			tags:    []string{"screencap", "transcode", "completed"},
		}, true
	case EventError:
		var builder strings.Builder
		builder.WriteString("Error")
		if label := strings.TrimSpace(stringValue(p["context"])); label != "" {
			builder.WriteString(" with ")
			builder.WriteString(label)
		}
		builder.WriteString(": ")
		if msg := strings.TrimSpace(stringValue(p["error"])); msg != "" {
			builder.WriteString(msg)
		} else {
			builder.WriteString("unknown")
		}
		return payload{
			title:    "Screencap - Error",
			message:  builder.String(),
			tags:     []string{"screencap", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return payload{
			title:    "Screencap - Test",
			message:  "Notification system test",
			tags:     []string{"screencap", "test"},
			priority: "low",
		}, true
	default:
		return payload{}, false
	}
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}

func intValue(v any) int64 {
	switch t := v.(type) {
	case int:
		return int64(t)
	case int64:
		return t
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func formatSeconds(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return (time.Duration(seconds) * time.Second).String()
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

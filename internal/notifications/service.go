package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"studiocast/internal/config"
)

const userAgent = "studiocast/0.1.0"

// Event names a notification category.
type Event string

const (
	EventWorkersStarted  Event = "workers_started"
	EventUploadCompleted Event = "upload_completed"
	EventUploadFailed    Event = "upload_failed"
	EventSessionStale    Event = "session_stale"
	EventError           Event = "error"
	EventTest            Event = "test"
)

// Payload carries event fields. Values are formatted with %v.
type Payload map[string]any

// Service publishes events.
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
		uploads:  cfg.Notifications.Uploads,
		failures: cfg.Notifications.Failures,
		sessions: cfg.Notifications.Sessions,
	}
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
	uploads  bool
	failures bool
	sessions bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	msg, ok := n.format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventWorkersStarted:
		return message{
			title: "studiocast - Started",
			body:  fmt.Sprintf("Upload workers started for %s", text(payload, "accounts", "no accounts")),
			tags:  []string{"studiocast", "workers", "started"},
		}, true
	case EventUploadCompleted:
		if !n.uploads {
			return message{}, false
		}
		body := fmt.Sprintf("✅ Uploaded: %s", text(payload, "title", "untitled"))
		if url := text(payload, "url", ""); url != "" {
			body += "\n" + url
		}
		return message{
			title: "studiocast - Uploaded (" + text(payload, "account", "unknown") + ")",
			body:  body,
			tags:  []string{"studiocast", "upload", "completed"},
		}, true
	case EventUploadFailed:
		if !n.failures {
			return message{}, false
		}
		return message{
			title:    "studiocast - Upload Failed (" + text(payload, "account", "unknown") + ")",
			body:     fmt.Sprintf("❌ %s: %s (row %s)", text(payload, "kind", "UnknownError"), text(payload, "title", "untitled"), text(payload, "row", "?")),
			tags:     []string{"studiocast", "upload", "failed"},
			priority: "high",
		}, true
	case EventSessionStale:
		if !n.sessions {
			return message{}, false
		}
		return message{
			title: "studiocast - Session Stale",
			body:  fmt.Sprintf("⚠️ Session for %s unused since %s; re-export cookies", text(payload, "account", "unknown"), text(payload, "last_used", "unknown")),
			tags:  []string{"studiocast", "session", "stale"},
		}, true
	case EventError:
		var b strings.Builder
		b.WriteString("❌ Error")
		if label := text(payload, "context", ""); label != "" {
			b.WriteString(" with ")
			b.WriteString(label)
		}
		b.WriteString(": ")
		b.WriteString(text(payload, "error", "unknown"))
		return message{
			title:    "studiocast - Error",
			body:     b.String(),
			tags:     []string{"studiocast", "error", "alert"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "studiocast - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"studiocast", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
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
	if msg.priority != "" {
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

func text(payload Payload, key, fallback string) string {
	value, ok := payload[key]
	if !ok || value == nil {
		return fallback
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case error:
		s = v.Error()
	case time.Time:
		s = v.UTC().Format(time.RFC3339)
	case []string:
		s = strings.Join(v, ", ")
	default:
		s = fmt.Sprint(v)
	}
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

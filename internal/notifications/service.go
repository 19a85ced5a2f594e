package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MayankTamakuwala/TranscriBelt/internal/config"
)

const userAgent = "TranscriBelt/0.1.0"

// Event names a pipeline milestone worth pushing to an operator.
type Event string

const (
	EventJobCompleted Event = "job_completed"
	EventJobFailed    Event = "job_failed"
	EventSummaryReady Event = "summary_ready"
	EventTest         Event = "test"
)

// Payload carries event-specific fields. Unknown keys are ignored.
type Payload map[string]any

// Service publishes events. Implementations drop events they are configured
// to suppress and return nil.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds an ntfy-backed service, or a no-op when no topic is set.
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
		enabled: map[Event]bool{
			EventJobCompleted: cfg.Notifications.JobCompleted,
			EventJobFailed:    cfg.Notifications.JobFailed,
			EventSummaryReady: cfg.Notifications.SummaryReady,
			EventTest:         true,
		},
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
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if !n.enabled[event] {
		return nil
	}
	msg, ok := format(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func format(event Event, payload Payload) (message, bool) {
	switch event {
	case EventJobCompleted:
		body := fmt.Sprintf("✅ Captioned: %s", field(payload, "jobID"))
		if url := field(payload, "resultURL"); url != "" {
			body += "\n" + url
		}
		return message{
			title: "TranscriBelt - Job Complete",
			body:  body,
			tags:  []string{"transcribelt", "job", "completed"},
		}, true
	case EventJobFailed:
		body := fmt.Sprintf("❌ Job %s failed", field(payload, "jobID"))
		if stage := field(payload, "stage"); stage != "" {
			body += " during " + stage
		}
		if reason := field(payload, "error"); reason != "" {
			body += ": " + reason
		}
		return message{
			title:    "TranscriBelt - Job Failed",
			body:     body,
			tags:     []string{"transcribelt", "error", "alert"},
			priority: "high",
		}, true
	case EventSummaryReady:
		return message{
			title: "TranscriBelt - Summary Ready",
			body:  fmt.Sprintf("📝 Summary stored for %s", field(payload, "folderID")),
			tags:  []string{"transcribelt", "summary", "ready"},
		}, true
	case EventTest:
		return message{
			title:    "TranscriBelt - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"transcribelt", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func field(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	value, ok := payload[key]
	if !ok || value == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
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

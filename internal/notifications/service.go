package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"splice/internal/config"
)

const userAgent = "Splice-Go/0.1.0"

// Service forwards selected events to an external push channel.
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
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		warnings:   cfg.Notifications.Warnings,
		relocation: cfg.Notifications.Relocation,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	warnings   bool
	relocation bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, data Payload) error {
	msg, ok := n.format(event, data)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(event Event, data Payload) (payload, bool) {
	switch event {
	case EventCorruptionWarning:
		if !n.warnings {
			return payload{}, false
		}
		message := strings.TrimSpace(data.String("message"))
		if path := strings.TrimSpace(data.String("path")); path != "" {
			message = fmt.Sprintf("%s\nProject: %s", message, path)
		}
		return payload{
			title:    "Splice - Corruption Warning",
			message:  "⚠️ " + message,
			tags:     []string{"splice", "autosave", "warning"},
			priority: "high",
		}, true
	case EventRelocationFinished:
		if !n.relocation {
			return payload{}, false
		}
		if errText := strings.TrimSpace(data.String("error")); errText != "" {
			return payload{
				title:    "Splice - Folder Move Failed",
				message:  fmt.Sprintf("❌ Moving project data failed: %s", errText),
				tags:     []string{"splice", "relocation", "error"},
				priority: "high",
			}, true
		}
		return payload{
			title:   "Splice - Folder Moved",
			message: fmt.Sprintf("📁 Project data moved to %s", strings.TrimSpace(data.String("destination"))),
			tags:    []string{"splice", "relocation", "completed"},
		}, true
	case EventTest:
		return payload{
			title:    "Splice - Test",
			message:  "🧪 Notification system test",
			tags:     []string{"splice", "test"},
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

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }

package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"splice/internal/config"
	"splice/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventCorruptionWarning, notifications.Payload{"message": "x"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:  "corruption warning",
			event: notifications.EventCorruptionWarning,
			payload: notifications.Payload{
				"message": "Autosave skipped: project has no tracks",
				"path":    "/home/u/Videos/cut.splice",
			},
			expectTitle:    "Splice - Corruption Warning",
			expectMessage:  "⚠️ Autosave skipped: project has no tracks\nProject: /home/u/Videos/cut.splice",
			expectTags:     "splice,autosave,warning",
			expectPriority: "high",
		},
		{
			name:          "relocation finished",
			event:         notifications.EventRelocationFinished,
			payload:       notifications.Payload{"destination": "/mnt/fast/1700000000000"},
			expectTitle:   "Splice - Folder Moved",
			expectMessage: "📁 Project data moved to /mnt/fast/1700000000000",
			expectTags:    "splice,relocation,completed",
		},
		{
			name:           "relocation failed",
			event:          notifications.EventRelocationFinished,
			payload:        notifications.Payload{"error": "disk full"},
			expectTitle:    "Splice - Folder Move Failed",
			expectMessage:  "❌ Moving project data failed: disk full",
			expectTags:     "splice,relocation,error",
			expectPriority: "high",
		},
		{
			name:           "test",
			event:          notifications.EventTest,
			expectTitle:    "Splice - Test",
			expectMessage:  "🧪 Notification system test",
			expectTags:     "splice,test",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				_ = r.Body.Close()
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresLocalEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for local-only event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	local := []notifications.Event{
		notifications.EventDocumentOpened,
		notifications.EventDocumentWillClose,
		notifications.EventLoadProgress,
		notifications.EventAdvisory,
		notifications.EventRelocationProgress,
		notifications.EventExternalChange,
	}
	for _, event := range local {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for local event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceHonorsWarningToggle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("warnings disabled but request received")
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Warnings = false
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventCorruptionWarning, notifications.Payload{"message": "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic denied", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

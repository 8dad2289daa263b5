package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studiocast/internal/config"
	"studiocast/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventUploadCompleted, notifications.Payload{"title": "Example"}); err != nil {
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
			name:  "upload completed",
			event: notifications.EventUploadCompleted,
			payload: notifications.Payload{
				"account": "main",
				"title":   "Launch video",
				"url":     "https://youtu.be/abc",
			},
			expectTitle:   "studiocast - Uploaded (main)",
			expectMessage: "✅ Uploaded: Launch video\nhttps://youtu.be/abc",
			expectTags:    "studiocast,upload,completed",
		},
		{
			name:  "upload failed",
			event: notifications.EventUploadFailed,
			payload: notifications.Payload{
				"account": "alt",
				"title":   "Teaser",
				"kind":    "UIDriverError",
				"row":     7,
			},
			expectTitle:    "studiocast - Upload Failed (alt)",
			expectMessage:  "❌ UIDriverError: Teaser (row 7)",
			expectTags:     "studiocast,upload,failed",
			expectPriority: "high",
		},
		{
			name:  "session stale",
			event: notifications.EventSessionStale,
			payload: notifications.Payload{
				"account":   "main",
				"last_used": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			},
			expectTitle:   "studiocast - Session Stale",
			expectMessage: "⚠️ Session for main unused since 2026-01-02T03:04:05Z; re-export cookies",
			expectTags:    "studiocast,session,stale",
		},
		{
			name:  "workers started",
			event: notifications.EventWorkersStarted,
			payload: notifications.Payload{
				"accounts": []string{"main", "alt"},
			},
			expectTitle:   "studiocast - Started",
			expectMessage: "Upload workers started for main, alt",
			expectTags:    "studiocast,workers,started",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "startup",
				"error":   errors.New("sheet unreachable"),
			},
			expectTitle:    "studiocast - Error",
			expectMessage:  "❌ Error with startup: sheet unreachable",
			expectTags:     "studiocast,error,alert",
			expectPriority: "high",
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
			cfg.Notifications.Uploads = true
			cfg.Notifications.Failures = true
			cfg.Notifications.Sessions = true

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

func TestNtfyServiceIgnoresSuppressedEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.Header.Get("Title"))
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Uploads = false
	cfg.Notifications.Failures = false
	cfg.Notifications.Sessions = false

	svc := notifications.NewService(&cfg)
	suppressed := []notifications.Event{
		notifications.EventUploadCompleted,
		notifications.EventUploadFailed,
		notifications.EventSessionStale,
		notifications.Event("unknown"),
	}

	for _, event := range suppressed {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"value": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic closed", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventTest, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}

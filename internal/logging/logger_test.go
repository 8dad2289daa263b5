package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studiocast/internal/config"
	"studiocast/internal/logging"
	"studiocast/internal/services"
)

func TestNewFromConfigWritesRunLog(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "json"
	logPath := logging.RunLogPath(t.TempDir(), time.Now())

	logger, err := logging.NewFromConfig(&cfg, logPath)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &entry); err != nil {
		t.Fatalf("expected json line, got %q: %v", content, err)
	}
	if entry["msg"] != "hello" || entry["k"] != "v" || entry["level"] != "info" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if !strings.HasPrefix(filepath.Base(logPath), "studiocast-") {
		t.Fatalf("unexpected run log name %q", logPath)
	}
}

func TestConsoleLoggerIncludesCallerOnlyForDebug(t *testing.T) {
	for _, tc := range []struct {
		level  string
		caller bool
	}{{"info", false}, {"debug", true}} {
		logPath := filepath.Join(t.TempDir(), "console.log")
		logger, err := logging.New(logging.Options{Format: "console", Level: tc.level, OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		logger.Info("message")
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		if got := strings.Contains(string(content), ".go:"); got != tc.caller {
			t.Fatalf("level %s: caller present = %v, content %q", tc.level, got, content)
		}
	}
}

func TestConsoleLoggerRendersSubject(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console.log")
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}, ErrorOutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithJobRow(context.Background(), 12)
	ctx = services.WithAccount(ctx, "main")
	ctx = services.WithState(ctx, "Submitted")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "upload")).Info("publish clicked",
		logging.String(logging.FieldEventType, "publish_clicked"),
		logging.Int64("file_bytes", 2048),
	)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(content)
	for _, want := range []string{"INFO [upload] main · Row #12 (Submitted) – publish clicked", "- Event: publish_clicked", "- File Bytes: 2.0 kB"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if strings.Contains(out, "Job Row") {
		t.Fatalf("subject keys should not repeat as fields: %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

type captureHandler struct {
	attrs []slog.Attr
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *captureHandler) Handle(context.Context, slog.Record) error { return nil }
func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	h.attrs = append(h.attrs, attrs...)
	return h
}
func (h *captureHandler) WithGroup(string) slog.Handler { return h }

func TestWithContextAddsFields(t *testing.T) {
	ctx := services.WithJobRow(context.Background(), 123)
	ctx = services.WithAccount(ctx, "alt")
	ctx = services.WithAttemptID(ctx, "att-1")
	ctx = services.WithRequestID(ctx, "req-xyz")

	handler := &captureHandler{}
	logging.WithContext(ctx, slog.New(handler)).Info("contextual log")

	got := map[string]string{}
	for _, attr := range handler.attrs {
		got[attr.Key] = attr.Value.String()
	}
	want := map[string]string{
		logging.FieldJobRow:        "123",
		logging.FieldAccount:       "alt",
		logging.FieldAttemptID:     "att-1",
		logging.FieldCorrelationID: "req-xyz",
	}
	for key, value := range want {
		if got[key] != value {
			t.Fatalf("field %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestPruneFilesRemovesExpiredMatches(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "studiocast-old.log")
	fresh := filepath.Join(dir, "studiocast-new.log")
	current := filepath.Join(dir, "studiocast-current.log")
	other := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, current, other} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-72 * time.Hour)
	for _, path := range []string{old, current, other} {
		if err := os.Chtimes(path, past, past); err != nil {
			t.Fatal(err)
		}
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	removed := logging.PruneFiles(logging.NewNop(), cutoff, logging.RetentionTarget{Dir: dir, Pattern: "studiocast-*.log", Exclude: []string{current}})
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old log removed, stat err %v", err)
	}
	for _, path := range []string{fresh, current, other} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected %s kept: %v", path, err)
		}
	}
	if logging.PruneFiles(nil, cutoff, logging.RetentionTarget{Dir: filepath.Join(dir, "missing")}) != 0 {
		t.Fatal("missing directory should prune nothing")
	}
}

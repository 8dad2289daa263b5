package daemonrun

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studiocast/internal/logging"
	"studiocast/internal/preflight"
)

func TestCheckReady(t *testing.T) {
	logger := logging.NewNop()
	ok := []preflight.Result{
		{Name: "Log directory", Passed: true},
		{Name: "Session main", Passed: true, Warning: true, Detail: "unused since 2026-01-01"},
	}
	if err := checkReady(logger, ok); err != nil {
		t.Fatalf("warnings must not block startup: %v", err)
	}

	bad := append(ok, preflight.Result{Name: "Spreadsheet", Detail: "access denied"}, preflight.Result{Name: "Chrome"})
	err := checkReady(logger, bad)
	if err == nil {
		t.Fatal("expected failure")
	}
	if !strings.Contains(err.Error(), "Spreadsheet, Chrome") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "studiocast-1.log")
	second := filepath.Join(dir, "studiocast-2.log")
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte(filepath.Base(p)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "studiocast.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "studiocast-2.log" {
		t.Fatalf("pointer resolves to %q", data)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studiocast.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(data)) == "" {
		t.Fatal("pid file is empty")
	}
}

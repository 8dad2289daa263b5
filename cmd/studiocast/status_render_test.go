package main

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"studiocast/internal/ledger"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Session main", statusError, "missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Session main:", "[ERROR] missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Chrome", statusOK, "/usr/bin/google-chrome", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestHistoryRowsShowReasonForFailures(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := historyRows([]ledger.Attempt{
		{Account: "main", RowIndex: 4, Title: "ok", Status: "Done", ResultURL: "https://youtu.be/x", Attempts: 1, StartedAt: now.Add(-90 * time.Second), FinishedAt: now},
		{Account: "main", RowIndex: 5, Title: "bad", Status: "Failed", Reason: "SessionMissing", Attempts: 1},
		{Account: "main", RowIndex: 6, Title: "odd", Status: "Failed", Error: "boom"},
	}, now)

	if rows[0][7] != "https://youtu.be/x" || rows[0][6] != "1m30s" {
		t.Fatalf("unexpected done row %v", rows[0])
	}
	if rows[1][7] != "SessionMissing" || rows[1][0] != "-" {
		t.Fatalf("unexpected failed row %v", rows[1])
	}
	if rows[2][7] != "boom" {
		t.Fatalf("expected error fallback, got %v", rows[2])
	}
}

func TestRenderTableTrimsWideColumns(t *testing.T) {
	out := renderTable([]column{{Header: "Title", MaxWidth: 5}}, [][]string{{"abcdefghij"}})
	if strings.Contains(out, "abcdefghij") {
		t.Fatalf("expected title trimmed, got %q", out)
	}
	requireContains(t, out, "abcde")
}

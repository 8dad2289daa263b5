package ledger_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"studiocast/internal/ledger"
	"studiocast/internal/testsupport"
)

func TestOpenCreatesSchemaAndReopens(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if store.Path() != cfg.LedgerPath() {
		t.Fatalf("path = %q, want %q", store.Path(), cfg.LedgerPath())
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
}

func TestRecordAndListAttempts(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	records := []ledger.Attempt{
		{ID: "a1", Account: "Main", RowIndex: 2, Title: "First", State: "Done", Status: "Done", ResultURL: "https://studio/v/1", Attempts: 1, StartedAt: base, FinishedAt: base.Add(time.Minute)},
		{ID: "a2", Account: "main", RowIndex: 3, Title: "Second", State: "Failed", Status: "Failed", Reason: "ValidationError", Error: "title empty", Attempts: 1, StartedAt: base.Add(2 * time.Minute), FinishedAt: base.Add(3 * time.Minute)},
		{ID: "a3", Account: "alt", RowIndex: 4, Title: "Third", State: "Done", Status: "Done", ResultURL: "https://studio/v/3", Attempts: 2, StartedAt: base.Add(4 * time.Minute), FinishedAt: base.Add(6 * time.Minute)},
	}
	for _, rec := range records {
		if err := store.RecordAttempt(ctx, rec); err != nil {
			t.Fatalf("RecordAttempt(%s) failed: %v", rec.ID, err)
		}
	}

	all, err := store.ListAttempts(ctx, ledger.Filter{})
	if err != nil {
		t.Fatalf("ListAttempts failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "a3" || all[2].ID != "a1" {
		t.Fatalf("unexpected order: %+v", all)
	}
	if all[2].Duration() != time.Minute {
		t.Fatalf("duration = %s, want 1m", all[2].Duration())
	}

	mainOnly, err := store.ListAttempts(ctx, ledger.Filter{Account: "MAIN"})
	if err != nil {
		t.Fatalf("ListAttempts(account) failed: %v", err)
	}
	if len(mainOnly) != 2 {
		t.Fatalf("expected 2 attempts for main, got %d", len(mainOnly))
	}

	failed, err := store.ListAttempts(ctx, ledger.Filter{Status: "failed", Limit: 5})
	if err != nil {
		t.Fatalf("ListAttempts(status) failed: %v", err)
	}
	if len(failed) != 1 || failed[0].Reason != "ValidationError" || failed[0].Error != "title empty" {
		t.Fatalf("unexpected failed attempts: %+v", failed)
	}

	summaries, err := store.Summaries(ctx)
	if err != nil {
		t.Fatalf("Summaries failed: %v", err)
	}
	alt := summaries["alt"]
	if alt.Done != 1 || alt.Failed != 0 || alt.LastURL != "https://studio/v/3" {
		t.Fatalf("unexpected alt summary: %+v", alt)
	}
}

func TestRecordAttemptReplacesSameID(t *testing.T) {
	store := testsupport.MustOpenLedger(t, testsupport.NewConfig(t))
	ctx := context.Background()
	rec := ledger.Attempt{ID: "same", Account: "main", RowIndex: 2, State: "Failed", Status: "Failed", Reason: "Cancelled"}
	if err := store.RecordAttempt(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.Reason = "UIDriverError"
	if err := store.RecordAttempt(ctx, rec); err != nil {
		t.Fatal(err)
	}
	list, err := store.ListAttempts(ctx, ledger.Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].Reason != "UIDriverError" {
		t.Fatalf("unexpected attempts after replace: %+v", list)
	}
	if err := store.RecordAttempt(ctx, ledger.Attempt{}); err == nil {
		t.Fatal("expected error for attempt without id")
	}
}

func TestSessionUsage(t *testing.T) {
	store, err := ledger.OpenPath(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	if _, ok, err := store.SessionLastUsed(ctx, "main"); err != nil || ok {
		t.Fatalf("expected no usage yet, ok=%v err=%v", ok, err)
	}
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := store.RecordSessionUse(ctx, "Main", first); err != nil {
		t.Fatalf("RecordSessionUse failed: %v", err)
	}
	second := first.Add(time.Hour)
	if err := store.RecordSessionUse(ctx, "main", second); err != nil {
		t.Fatalf("RecordSessionUse update failed: %v", err)
	}
	got, ok, err := store.SessionLastUsed(ctx, "MAIN")
	if err != nil || !ok {
		t.Fatalf("SessionLastUsed failed: ok=%v err=%v", ok, err)
	}
	if !got.Equal(second) {
		t.Fatalf("last used = %s, want %s", got, second)
	}
}

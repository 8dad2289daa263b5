package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"studiocast/internal/ledger"
	"studiocast/internal/preflight"
	"studiocast/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "conf", "studiocast.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	requireContains(t, string(data), "[[accounts]]")

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, ""); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateUsesConfigFlag(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAccounts("main", "alt"))

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "Accounts: main, alt")
	requireContains(t, out, "Spreadsheet: test-sheet (Uploads)")
	requireContains(t, out, "Configuration valid")
}

func TestConfigValidateRejectsMissingAccounts(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAccounts())

	_, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	requireContains(t, err.Error(), "accounts")
}

func TestCheckOfflineReady(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	testsupport.WriteFile(t, env.cfg.Google.CredentialsFile, 16)
	testsupport.WriteCookies(t, env.cfg.Accounts[0].SessionFile)

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	if err != nil {
		t.Fatalf("check: %v\n%s", err, out)
	}
	requireContains(t, out, "[OK]")
	requireContains(t, out, "Ready")
	if strings.Contains(out, "[ERROR]") {
		t.Fatalf("unexpected error line in %q", out)
	}
}

func TestCheckReportsMissingSession(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	testsupport.WriteFile(t, env.cfg.Google.CredentialsFile, 16)

	out, _, err := runCLI(t, []string{"check", "--offline"}, env.configPath)
	if err == nil {
		t.Fatalf("expected check to fail, output %q", out)
	}
	requireContains(t, out, "[ERROR]")
	requireContains(t, err.Error(), "checks failed")
}

func TestAccountsShowsSessionAndTotals(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAccounts("main", "alt"))
	testsupport.WriteCookies(t, env.cfg.Accounts[0].SessionFile)

	store := testsupport.MustOpenLedger(t, env.cfg)
	now := time.Now()
	seedAttempt(t, store, ledger.Attempt{ID: "a1", Account: "main", RowIndex: 2, Title: "First", Status: "Done", ResultURL: "https://youtu.be/abc", StartedAt: now.Add(-time.Hour), FinishedAt: now.Add(-50 * time.Minute)})
	seedAttempt(t, store, ledger.Attempt{ID: "a2", Account: "main", RowIndex: 3, Title: "Second", Status: "Failed", Reason: "UIDriverError", StartedAt: now.Add(-time.Hour), FinishedAt: now.Add(-40 * time.Minute)})

	out, _, err := runCLI(t, []string{"accounts"}, env.configPath)
	if err != nil {
		t.Fatalf("accounts: %v", err)
	}
	requireContains(t, out, "main")
	requireContains(t, out, "alt")
	requireContains(t, out, "missing")
	requireContains(t, out, "https://youtu.be/abc")
	requireContains(t, out, "ago")
}

func TestHistoryFiltersByStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenLedger(t, env.cfg)
	now := time.Now()
	seedAttempt(t, store, ledger.Attempt{ID: "h1", Account: "main", RowIndex: 2, Title: "Kept upload", Status: "Done", ResultURL: "https://youtu.be/ok", Attempts: 1, StartedAt: now.Add(-2 * time.Minute), FinishedAt: now.Add(-time.Minute)})
	seedAttempt(t, store, ledger.Attempt{ID: "h2", Account: "main", RowIndex: 3, Title: "Broken upload", Status: "Failed", Reason: "VerificationTimeout", Attempts: 3, StartedAt: now.Add(-2 * time.Minute), FinishedAt: now})

	out, _, err := runCLI(t, []string{"history", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "Broken upload")
	requireContains(t, out, "VerificationTimeout")
	if strings.Contains(out, "Kept upload") {
		t.Fatalf("done attempt should be filtered out: %q", out)
	}

	if _, _, err := runCLI(t, []string{"history", "--status", "pending"}, env.configPath); err == nil {
		t.Fatal("expected invalid status to be rejected")
	}
}

func TestHistoryEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"history"}, env.configPath)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "No upload attempts recorded")
}

func TestTestNotifyDisabled(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Notifications disabled")
}

func TestTestNotifySends(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	env := setupCLITestEnv(t)
	env.cfg.Notifications.NtfyTopic = srv.URL + "/studiocast"
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")
	if hits.Load() != 1 {
		t.Fatalf("expected one request, got %d", hits.Load())
	}
}

func TestResultKind(t *testing.T) {
	cases := []struct {
		result preflight.Result
		want   statusKind
	}{
		{preflight.Result{Passed: true}, statusOK},
		{preflight.Result{Passed: true, Warning: true}, statusWarn},
		{preflight.Result{}, statusError},
	}
	for _, tc := range cases {
		if got := resultKind(tc.result); got != tc.want {
			t.Fatalf("resultKind(%+v) = %v, want %v", tc.result, got, tc.want)
		}
	}
}

func seedAttempt(t *testing.T, store *ledger.Store, attempt ledger.Attempt) {
	t.Helper()
	if err := store.RecordAttempt(context.Background(), attempt); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
}

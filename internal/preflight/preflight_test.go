package preflight

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studiocast/internal/services"
	"studiocast/internal/testsupport"
)

type stubProber struct{ err error }

func (p stubProber) Probe(context.Context) error { return p.err }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestCheckCredentials(t *testing.T) {
	if r := CheckCredentials(""); !r.Passed || !r.Warning {
		t.Fatalf("empty path should pass with warning, got %#v", r)
	}
	if r := CheckCredentials(filepath.Join(t.TempDir(), "missing.json")); r.Passed {
		t.Fatal("expected failure for missing file")
	}
	path := filepath.Join(t.TempDir(), "sa.json")
	if err := os.WriteFile(path, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	if r := CheckCredentials(path); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}
}

func TestCheckSessions(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAccounts("main", "alt"))
	testsupport.WriteCookies(t, cfg.Accounts[0].SessionFile, "SID", "HSID")

	results := CheckSessions(context.Background(), cfg)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if !results[0].Passed || results[0].Detail != "2 cookies" {
		t.Fatalf("main session: %#v", results[0])
	}
	if results[1].Passed {
		t.Fatal("expected alt session to fail without a cookie file")
	}
	if !strings.Contains(results[1].Detail, "export cookies") {
		t.Fatalf("unexpected detail: %s", results[1].Detail)
	}
}

func TestCheckJobSource(t *testing.T) {
	if r := CheckJobSource(context.Background(), stubProber{}); !r.Passed {
		t.Fatalf("expected pass, got: %s", r.Detail)
	}
	schemaErr := services.Wrap(services.ErrSchema, "jobsource", "resolve columns", "missing column(s) \"UploadYT\"", nil)
	r := CheckJobSource(context.Background(), stubProber{err: schemaErr})
	if r.Passed || !strings.HasPrefix(r.Detail, "header row:") {
		t.Fatalf("unexpected result: %#v", r)
	}
	r = CheckJobSource(context.Background(), stubProber{err: context.DeadlineExceeded})
	if r.Passed || !strings.Contains(r.Detail, "timed out") {
		t.Fatalf("unexpected result: %#v", r)
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_ReadyConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(cfg.Google.CredentialsFile, []byte("{}"), 0o600); err != nil {
		t.Fatal(err)
	}
	testsupport.WriteCookies(t, cfg.Accounts[0].SessionFile)

	results := RunAll(context.Background(), cfg, stubProber{})
	// 3 directories + credentials + 1 session + chrome + spreadsheet
	if len(results) != 7 {
		t.Fatalf("expected 7 results, got %d", len(results))
	}
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected failures: %#v", failed)
	}
}

func TestRunAll_ReportsFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatal(err)
	}

	results := RunAll(context.Background(), cfg, stubProber{err: errors.New("dial tcp: no route")})
	names := make(map[string]bool)
	for _, r := range Failed(results) {
		names[r.Name] = true
	}
	for _, want := range []string{"Google credentials", "Session main", "Spreadsheet"} {
		if !names[want] {
			t.Errorf("expected %q to fail; failures: %v", want, names)
		}
	}
	if names["Chrome"] {
		t.Error("stubbed chrome should pass")
	}
}

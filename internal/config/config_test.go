package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"studiocast/internal/config"
)

const minimalConfig = `
[google]
credentials_file = "sa.json"
spreadsheet_id = "sheet-123"

[[accounts]]
name = "Main"
session_file = "cookies/main.json"
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCustomPathAppliesDefaultsAndResolvesRelativePaths(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := writeConfig(t, dir, "studiocast.toml", minimalConfig)

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if got, want := cfg.Accounts[0].SessionFile, filepath.Join(dir, "cookies", "main.json"); got != want {
		t.Fatalf("session file = %q, want %q", got, want)
	}
	if got, want := cfg.Google.CredentialsFile, filepath.Join(dir, "sa.json"); got != want {
		t.Fatalf("credentials file = %q, want %q", got, want)
	}
	if cfg.Columns.Status != "UploadYT" || cfg.Columns.ResultURL != "YTUrl" {
		t.Fatalf("unexpected column defaults: %+v", cfg.Columns)
	}
	if cfg.Upload.MaxAttempts != 3 {
		t.Fatalf("max attempts = %d, want 3", cfg.Upload.MaxAttempts)
	}
	if !cfg.Cleanup.DeleteAfterUpload || cfg.Cleanup.DeleteAfterFailure {
		t.Fatalf("unexpected cleanup defaults: %+v", cfg.Cleanup)
	}
	if cfg.Cleanup.LogRetentionDays != 1 {
		t.Fatalf("log retention = %d, want 1", cfg.Cleanup.LogRetentionDays)
	}
	if cfg.Jobs.UnassignedPolicy != config.UnassignedAny {
		t.Fatalf("unassigned policy = %q", cfg.Jobs.UnassignedPolicy)
	}
	if !strings.HasPrefix(cfg.Paths.StateDir, os.Getenv("HOME")) {
		t.Fatalf("expected state dir under HOME, got %q", cfg.Paths.StateDir)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.LogDir, cfg.Paths.StateDir, cfg.Paths.DownloadDir} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
	}
}

func TestLoadReadsDotEnvBesideConfig(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	os.Unsetenv("STUDIOCAST_SPREADSHEET_ID")
	t.Cleanup(func() { os.Unsetenv("STUDIOCAST_SPREADSHEET_ID") })

	dir := t.TempDir()
	writeConfig(t, dir, ".env", "STUDIOCAST_SPREADSHEET_ID=from-dotenv\n")
	path := writeConfig(t, dir, "studiocast.toml", `
[google]
credentials_file = "sa.json"

[[accounts]]
name = "main"
session_file = "main.json"
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Google.SpreadsheetID != "from-dotenv" {
		t.Fatalf("spreadsheet id = %q, want from-dotenv", cfg.Google.SpreadsheetID)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	path := writeConfig(t, dir, "studiocast.yaml", `
google:
  credentials_file: sa.json
  spreadsheet_id: yaml-sheet
accounts:
  - name: alpha
    session_file: alpha.json
    visibility: Unlisted
    schedule:
      times: ["08:30", "20:00"]
      randomize: true
      daily_uploads: 1
schedule:
  times: ["12:00"]
  timezone: Asia/Jakarta
upload:
  max_attempts: 5
`)

	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Google.SpreadsheetID != "yaml-sheet" {
		t.Fatalf("spreadsheet id = %q", cfg.Google.SpreadsheetID)
	}
	if cfg.Upload.MaxAttempts != 5 {
		t.Fatalf("max attempts = %d, want 5", cfg.Upload.MaxAttempts)
	}
	account, ok := cfg.AccountByName("ALPHA")
	if !ok {
		t.Fatal("expected case-insensitive account lookup")
	}
	if cfg.VisibilityFor(account) != "unlisted" {
		t.Fatalf("visibility = %q, want unlisted", cfg.VisibilityFor(account))
	}
	sched := cfg.ScheduleFor(account)
	if !sched.Randomize || sched.DailyUploads != 1 || len(sched.Times) != 2 {
		t.Fatalf("unexpected account schedule: %+v", sched)
	}
	if sched.Timezone != "Asia/Jakarta" {
		t.Fatalf("expected account schedule to inherit timezone, got %q", sched.Timezone)
	}
	if sched.Location().String() != "Asia/Jakarta" {
		t.Fatalf("location = %s", sched.Location())
	}
}

func TestChannelDefaultsFallBackToUploadSection(t *testing.T) {
	cfg := config.Default()
	yes := true
	account := config.Account{Name: "kids", MadeForKids: &yes}
	if !cfg.MadeForKidsFor(account) {
		t.Fatal("expected account override to win")
	}
	if cfg.AlteredContentFor(account) {
		t.Fatal("expected upload default for altered content")
	}
	if cfg.VisibilityFor(account) != "public" {
		t.Fatalf("visibility = %q, want public", cfg.VisibilityFor(account))
	}
	if got := cfg.ScheduleFor(account); got.Location() != time.UTC {
		t.Fatalf("expected UTC default location, got %s", got.Location())
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base := func() config.Config {
		cfg := config.Default()
		cfg.Google.SpreadsheetID = "sheet"
		cfg.Google.CredentialsFile = "/tmp/sa.json"
		cfg.Accounts = []config.Account{{Name: "main", SessionFile: "/tmp/main.json"}}
		return cfg
	}
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"missing sheet", func(c *config.Config) { c.Google.SpreadsheetID = "" }, "google.spreadsheet_id"},
		{"no accounts", func(c *config.Config) { c.Accounts = nil }, "accounts"},
		{"duplicate account", func(c *config.Config) {
			c.Accounts = append(c.Accounts, config.Account{Name: "MAIN", SessionFile: "/tmp/x.json"})
		}, "duplicated"},
		{"bad time", func(c *config.Config) { c.Schedule.Times = []string{"25:00"} }, "HH:MM"},
		{"bad timezone", func(c *config.Config) { c.Schedule.Timezone = "Mars/Base" }, "schedule.timezone"},
		{"bad policy", func(c *config.Config) { c.Jobs.UnassignedPolicy = "round-robin" }, "jobs.unassigned_policy"},
		{"zero attempts", func(c *config.Config) { c.Upload.MaxAttempts = 0 }, "upload.max_attempts"},
		{"bad visibility", func(c *config.Config) { c.Upload.DefaultVisibility = "secret" }, "upload.default_visibility"},
		{"zero fetch attempts", func(c *config.Config) { c.Workflow.FetchAttempts = 0 }, "workflow.fetch_attempts"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			if err := cfg.Validate(); err != nil {
				t.Fatalf("base config invalid: %v", err)
			}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestCreateSampleLoads(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("STUDIOCAST_SPREADSHEET_ID", "sample-sheet")
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if len(cfg.Accounts) != 1 || cfg.Accounts[0].Name != "main" {
		t.Fatalf("unexpected sample accounts: %+v", cfg.Accounts)
	}
}

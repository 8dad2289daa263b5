package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studiocast/internal/config"
	"studiocast/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("STUDIOCAST_SPREADSHEET_ID", "")
	t.Setenv("STUDIOCAST_NTFY_TOPIC", "")
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nlog_dir = %q\nstate_dir = %q\ndownload_dir = %q\n\n",
		cfg.Paths.LogDir, cfg.Paths.StateDir, cfg.Paths.DownloadDir)
	fmt.Fprintf(&b, "[google]\ncredentials_file = %q\nspreadsheet_id = %q\nworksheet = \"Uploads\"\n\n",
		cfg.Google.CredentialsFile, cfg.Google.SpreadsheetID)
	if cfg.Notifications.NtfyTopic != "" {
		fmt.Fprintf(&b, "[notifications]\nntfy_topic = %q\n\n", cfg.Notifications.NtfyTopic)
	}
	for _, acct := range cfg.Accounts {
		fmt.Fprintf(&b, "[[accounts]]\nname = %q\nsession_file = %q\n\n", acct.Name, acct.SessionFile)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

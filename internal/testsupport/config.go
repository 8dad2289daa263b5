package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"studiocast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defines a single account named "main" and disables retry backoff.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Google.SpreadsheetID = "test-sheet"
	cfgVal.Google.CredentialsFile = filepath.Join(base, "service_account.json")
	cfgVal.Accounts = []config.Account{{Name: "main", SessionFile: filepath.Join(base, "sessions", "main.json")}}
	cfgVal.Upload.RetryBackoffSeconds = 0
	cfgVal.Upload.MaxBackoffSeconds = 0
	cfgVal.Upload.MinFreeDiskMB = 0
	cfgVal.Workflow.ErrorRetryInterval = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAccounts replaces the configured accounts. Session files are placed
// under the config's sessions directory.
func WithAccounts(names ...string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Accounts = b.cfg.Accounts[:0]
		for _, name := range names {
			b.cfg.Accounts = append(b.cfg.Accounts, config.Account{
				Name:        name,
				SessionFile: filepath.Join(b.baseDir, "sessions", name+".json"),
			})
		}
	}
}

// WithMaxAttempts sets the per-job retry ceiling.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Upload.MaxAttempts = n
	}
}

// WithUnassignedPolicy sets jobs.unassigned_policy.
func WithUnassignedPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Jobs.UnassignedPolicy = policy
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, the default browser binary is
// stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"google-chrome"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

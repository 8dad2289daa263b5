package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local directories used by the daemon.
type Paths struct {
	LogDir      string `toml:"log_dir" yaml:"log_dir"`
	StateDir    string `toml:"state_dir" yaml:"state_dir"`
	DownloadDir string `toml:"download_dir" yaml:"download_dir"`
}

// Google contains spreadsheet and Drive access settings.
type Google struct {
	CredentialsFile string `toml:"credentials_file" yaml:"credentials_file"`
	SpreadsheetID   string `toml:"spreadsheet_id" yaml:"spreadsheet_id"`
	Worksheet       string `toml:"worksheet" yaml:"worksheet"`
	DriveAPI        bool   `toml:"drive_api" yaml:"drive_api"`
}

// Columns maps spreadsheet header names to job fields. Empty names disable
// optional columns.
type Columns struct {
	Status         string `toml:"status" yaml:"status"`
	Account        string `toml:"account" yaml:"account"`
	File           string `toml:"file" yaml:"file"`
	DriveFileID    string `toml:"drive_file_id" yaml:"drive_file_id"`
	DriveURL       string `toml:"drive_url" yaml:"drive_url"`
	Title          string `toml:"title" yaml:"title"`
	Description    string `toml:"description" yaml:"description"`
	Tags           string `toml:"tags" yaml:"tags"`
	Hashtags       string `toml:"hashtags" yaml:"hashtags"`
	Visibility     string `toml:"visibility" yaml:"visibility"`
	AlteredContent string `toml:"altered_content" yaml:"altered_content"`
	MadeForKids    string `toml:"made_for_kids" yaml:"made_for_kids"`
	ResultURL      string `toml:"result_url" yaml:"result_url"`
	Reason         string `toml:"reason" yaml:"reason"`
}

// Jobs controls which rows an account worker may pick up.
type Jobs struct {
	UnassignedPolicy string `toml:"unassigned_policy" yaml:"unassigned_policy"`
	RequireAccount   bool   `toml:"require_account" yaml:"require_account"`
}

// Schedule describes the daily upload slots of an account.
type Schedule struct {
	Times        []string `toml:"times" yaml:"times"`
	Randomize    bool     `toml:"randomize" yaml:"randomize"`
	DailyUploads int      `toml:"daily_uploads" yaml:"daily_uploads"`
	Timezone     string   `toml:"timezone" yaml:"timezone"`
}

// Account describes one uploading identity.
type Account struct {
	Name           string    `toml:"name" yaml:"name"`
	SessionFile    string    `toml:"session_file" yaml:"session_file"`
	ChannelURL     string    `toml:"channel_url" yaml:"channel_url"`
	Visibility     string    `toml:"visibility" yaml:"visibility"`
	MadeForKids    *bool     `toml:"made_for_kids" yaml:"made_for_kids"`
	AlteredContent *bool     `toml:"altered_content" yaml:"altered_content"`
	Schedule       *Schedule `toml:"schedule" yaml:"schedule"`
}

// Upload contains retry policy and per-job defaults.
type Upload struct {
	MaxAttempts            int    `toml:"max_attempts" yaml:"max_attempts"`
	RetryBackoffSeconds    int    `toml:"retry_backoff_seconds" yaml:"retry_backoff_seconds"`
	MaxBackoffSeconds      int    `toml:"max_backoff_seconds" yaml:"max_backoff_seconds"`
	VerifyTimeoutSeconds   int    `toml:"verify_timeout_seconds" yaml:"verify_timeout_seconds"`
	VerifyPollSeconds      int    `toml:"verify_poll_seconds" yaml:"verify_poll_seconds"`
	DownloadTimeoutSeconds int    `toml:"download_timeout_seconds" yaml:"download_timeout_seconds"`
	FetchLimit             int    `toml:"fetch_limit" yaml:"fetch_limit"`
	DefaultVisibility      string `toml:"default_visibility" yaml:"default_visibility"`
	MadeForKids            bool   `toml:"made_for_kids" yaml:"made_for_kids"`
	AlteredContent         bool   `toml:"altered_content" yaml:"altered_content"`
	MinFreeDiskMB          int    `toml:"min_free_disk_mb" yaml:"min_free_disk_mb"`
}

// Browser contains studio driver settings.
type Browser struct {
	Headless                 bool   `toml:"headless" yaml:"headless"`
	ChromePath               string `toml:"chrome_path" yaml:"chrome_path"`
	UserAgent                string `toml:"user_agent" yaml:"user_agent"`
	StudioURL                string `toml:"studio_url" yaml:"studio_url"`
	NavigationTimeoutSeconds int    `toml:"navigation_timeout_seconds" yaml:"navigation_timeout_seconds"`
}

// Session contains cookie session settings.
type Session struct {
	StaleAfterHours int `toml:"stale_after_hours" yaml:"stale_after_hours"`
}

// Cleanup controls post-job file removal and retention pruning.
type Cleanup struct {
	DeleteAfterUpload  bool `toml:"delete_after_upload" yaml:"delete_after_upload"`
	DeleteAfterFailure bool `toml:"delete_after_failure" yaml:"delete_after_failure"`
	LogRetentionDays   int  `toml:"log_retention_days" yaml:"log_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format" yaml:"format"`
	Level  string `toml:"level" yaml:"level"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
	Uploads        bool   `toml:"uploads" yaml:"uploads"`
	Failures       bool   `toml:"failures" yaml:"failures"`
	Sessions       bool   `toml:"sessions" yaml:"sessions"`
}

// Workflow contains configuration for daemon timing.
type Workflow struct {
	FetchAttempts      int `toml:"fetch_attempts" yaml:"fetch_attempts"`
	ErrorRetryInterval int `toml:"error_retry_interval" yaml:"error_retry_interval"`
}

// Config encapsulates all configuration values for studiocast.
//
// Configuration sections by subsystem:
//   - Paths: log, state, and download directories
//   - Google: spreadsheet and Drive credentials
//   - Columns: spreadsheet header mapping
//   - Jobs: row eligibility rules
//   - Accounts: uploading identities and their sessions
//   - Schedule: default daily upload slots
//   - Upload: retry policy and metadata defaults
//   - Browser: studio driver settings
//   - Session, Cleanup, Logging, Notifications, Workflow
type Config struct {
	Paths         Paths         `toml:"paths" yaml:"paths"`
	Google        Google        `toml:"google" yaml:"google"`
	Columns       Columns       `toml:"columns" yaml:"columns"`
	Jobs          Jobs          `toml:"jobs" yaml:"jobs"`
	Accounts      []Account     `toml:"accounts" yaml:"accounts"`
	Schedule      Schedule      `toml:"schedule" yaml:"schedule"`
	Upload        Upload        `toml:"upload" yaml:"upload"`
	Browser       Browser       `toml:"browser" yaml:"browser"`
	Session       Session       `toml:"session" yaml:"session"`
	Cleanup       Cleanup       `toml:"cleanup" yaml:"cleanup"`
	Logging       Logging       `toml:"logging" yaml:"logging"`
	Notifications Notifications `toml:"notifications" yaml:"notifications"`
	Workflow      Workflow      `toml:"workflow" yaml:"workflow"`

	baseDir string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/studiocast/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized. A .env file next to the config is loaded
// into the environment first; variables already set win.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg.baseDir = filepath.Dir(resolvedPath)

	envPath := filepath.Join(cfg.baseDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			return nil, "", false, fmt.Errorf("load %s: %w", envPath, err)
		}
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.NewDecoder(file).Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("parse config: %w", err)
		}
	default:
		if err := toml.NewDecoder(file).Decode(cfg); err != nil {
			return fmt.Errorf("parse config: %w", err)
		}
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("studiocast.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.LogDir, c.Paths.StateDir, c.Paths.DownloadDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LedgerPath returns the SQLite attempt ledger location.
func (c *Config) LedgerPath() string {
	return filepath.Join(c.Paths.StateDir, "studiocast.db")
}

// LockPath returns the daemon single-instance lock location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "studiocast.lock")
}

// AccountByName finds an account using a case-insensitive name match.
func (c *Config) AccountByName(name string) (Account, bool) {
	name = strings.TrimSpace(name)
	for _, account := range c.Accounts {
		if strings.EqualFold(account.Name, name) {
			return account, true
		}
	}
	return Account{}, false
}

// AccountNames returns configured account names in declaration order.
func (c *Config) AccountNames() []string {
	names := make([]string, 0, len(c.Accounts))
	for _, account := range c.Accounts {
		names = append(names, account.Name)
	}
	return names
}

// ScheduleFor returns the account's own schedule, or the global one.
func (c *Config) ScheduleFor(account Account) Schedule {
	if account.Schedule != nil && len(account.Schedule.Times) > 0 {
		return *account.Schedule
	}
	return c.Schedule
}

// Location resolves a schedule timezone. Unknown names fall back to UTC; the
// value was checked during validation.
func (s Schedule) Location() *time.Location {
	if strings.TrimSpace(s.Timezone) == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// VisibilityFor resolves the channel default visibility of an account.
func (c *Config) VisibilityFor(account Account) string {
	if v := strings.TrimSpace(account.Visibility); v != "" {
		return v
	}
	return c.Upload.DefaultVisibility
}

// MadeForKidsFor resolves the channel default made-for-kids flag.
func (c *Config) MadeForKidsFor(account Account) bool {
	if account.MadeForKids != nil {
		return *account.MadeForKids
	}
	return c.Upload.MadeForKids
}

// AlteredContentFor resolves the channel default altered-content flag.
func (c *Config) AlteredContentFor(account Account) bool {
	if account.AlteredContent != nil {
		return *account.AlteredContent
	}
	return c.Upload.AlteredContent
}

func expandPath(pathValue string) (string, error) {
	return resolvePath("", pathValue)
}

// resolvePath expands a leading tilde and anchors relative paths at base when
// base is set; otherwise at the working directory.
func resolvePath(base, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	if !filepath.IsAbs(pathValue) && base != "" {
		pathValue = filepath.Join(base, pathValue)
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateGoogle(); err != nil {
		return err
	}
	if err := c.validateAccounts(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	if err := validateSchedule("schedule", c.Schedule); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateTimings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateGoogle() error {
	if c.Google.SpreadsheetID == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/studiocast/config.toml"
		}
		return fmt.Errorf("google.spreadsheet_id is required. Set STUDIOCAST_SPREADSHEET_ID env var or edit %s (create with 'studiocast config init')", defaultPath)
	}
	if strings.TrimSpace(c.Google.CredentialsFile) == "" {
		return errors.New("google.credentials_file is required (or set GOOGLE_APPLICATION_CREDENTIALS)")
	}
	return nil
}

func (c *Config) validateAccounts() error {
	if len(c.Accounts) == 0 {
		return errors.New("at least one [[accounts]] entry is required")
	}
	seen := make(map[string]struct{}, len(c.Accounts))
	for i, account := range c.Accounts {
		if account.Name == "" {
			return fmt.Errorf("accounts[%d].name must be set", i)
		}
		key := strings.ToLower(account.Name)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("accounts[%d].name %q is duplicated", i, account.Name)
		}
		seen[key] = struct{}{}
		if account.SessionFile == "" {
			return fmt.Errorf("accounts[%d].session_file must be set for %q", i, account.Name)
		}
		if account.Visibility != "" {
			if _, ok := visibilities[account.Visibility]; !ok {
				return fmt.Errorf("accounts[%d].visibility %q must be public, private, or unlisted", i, account.Visibility)
			}
		}
		if account.Schedule != nil {
			if err := validateSchedule(fmt.Sprintf("accounts[%d].schedule", i), *account.Schedule); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Config) validateJobs() error {
	switch c.Jobs.UnassignedPolicy {
	case UnassignedAny, UnassignedSkip:
		return nil
	default:
		return fmt.Errorf("jobs.unassigned_policy %q must be %q or %q", c.Jobs.UnassignedPolicy, UnassignedAny, UnassignedSkip)
	}
}

func validateSchedule(prefix string, s Schedule) error {
	if len(s.Times) == 0 {
		return fmt.Errorf("%s.times must include at least one HH:MM entry", prefix)
	}
	for _, value := range s.Times {
		if _, err := time.Parse("15:04", value); err != nil {
			return fmt.Errorf("%s.times entry %q must use HH:MM", prefix, value)
		}
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return fmt.Errorf("%s.timezone %q: %w", prefix, s.Timezone, err)
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxAttempts < 1 {
		return errors.New("upload.max_attempts must be at least 1")
	}
	if _, ok := visibilities[c.Upload.DefaultVisibility]; !ok {
		return fmt.Errorf("upload.default_visibility %q must be public, private, or unlisted", c.Upload.DefaultVisibility)
	}
	if c.Upload.RetryBackoffSeconds < 0 {
		return errors.New("upload.retry_backoff_seconds must be >= 0")
	}
	if c.Upload.MaxBackoffSeconds < c.Upload.RetryBackoffSeconds {
		return errors.New("upload.max_backoff_seconds must be >= upload.retry_backoff_seconds")
	}
	if c.Upload.VerifyPollSeconds > c.Upload.VerifyTimeoutSeconds {
		return errors.New("upload.verify_poll_seconds must not exceed upload.verify_timeout_seconds")
	}
	return nil
}

func (c *Config) validateTimings() error {
	if err := ensurePositiveMap(map[string]int{
		"upload.verify_timeout_seconds":      c.Upload.VerifyTimeoutSeconds,
		"upload.verify_poll_seconds":         c.Upload.VerifyPollSeconds,
		"upload.download_timeout_seconds":    c.Upload.DownloadTimeoutSeconds,
		"browser.navigation_timeout_seconds": c.Browser.NavigationTimeoutSeconds,
		"session.stale_after_hours":          c.Session.StaleAfterHours,
		"notifications.request_timeout":      c.Notifications.RequestTimeout,
		"workflow.fetch_attempts":            c.Workflow.FetchAttempts,
		"workflow.error_retry_interval":      c.Workflow.ErrorRetryInterval,
	}); err != nil {
		return err
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

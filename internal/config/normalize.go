package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeGoogle(); err != nil {
		return err
	}
	c.Schedule = normalizeSchedule(c.Schedule)
	if err := c.normalizeAccounts(); err != nil {
		return err
	}
	c.normalizeColumns()
	c.normalizeJobs()
	c.normalizeUpload()
	c.normalizeBrowser()
	c.normalizeNotifications()
	c.normalizeLogging()
	if c.Cleanup.LogRetentionDays < 0 {
		c.Cleanup.LogRetentionDays = 0
	}
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = resolvePath(c.baseDir, c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = resolvePath(c.baseDir, c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DownloadDir) == "" {
		c.Paths.DownloadDir = defaultDownloadDir
	}
	if c.Paths.DownloadDir, err = resolvePath(c.baseDir, c.Paths.DownloadDir); err != nil {
		return fmt.Errorf("paths.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGoogle() error {
	c.Google.SpreadsheetID = strings.TrimSpace(c.Google.SpreadsheetID)
	if c.Google.SpreadsheetID == "" {
		if value, ok := os.LookupEnv("STUDIOCAST_SPREADSHEET_ID"); ok {
			c.Google.SpreadsheetID = strings.TrimSpace(value)
		}
	}
	if strings.TrimSpace(c.Google.CredentialsFile) == "" {
		if value, ok := os.LookupEnv("GOOGLE_APPLICATION_CREDENTIALS"); ok {
			c.Google.CredentialsFile = value
		}
	}
	var err error
	if c.Google.CredentialsFile, err = resolvePath(c.baseDir, c.Google.CredentialsFile); err != nil {
		return fmt.Errorf("google.credentials_file: %w", err)
	}
	c.Google.Worksheet = strings.TrimSpace(c.Google.Worksheet)
	if c.Google.Worksheet == "" {
		c.Google.Worksheet = defaultWorksheet
	}
	return nil
}

func (c *Config) normalizeAccounts() error {
	for i := range c.Accounts {
		account := &c.Accounts[i]
		account.Name = strings.TrimSpace(account.Name)
		account.ChannelURL = strings.TrimSpace(account.ChannelURL)
		account.Visibility = strings.ToLower(strings.TrimSpace(account.Visibility))
		path, err := resolvePath(c.baseDir, account.SessionFile)
		if err != nil {
			return fmt.Errorf("accounts[%d].session_file: %w", i, err)
		}
		account.SessionFile = path
		if account.Schedule != nil {
			own := *account.Schedule
			if strings.TrimSpace(own.Timezone) == "" {
				own.Timezone = c.Schedule.Timezone
			}
			normalized := normalizeSchedule(own)
			account.Schedule = &normalized
		}
	}
	return nil
}

func (c *Config) normalizeColumns() {
	cols := &c.Columns
	for _, field := range []*string{
		&cols.Status, &cols.Account, &cols.File, &cols.DriveFileID, &cols.DriveURL,
		&cols.Title, &cols.Description, &cols.Tags, &cols.Hashtags, &cols.Visibility,
		&cols.AlteredContent, &cols.MadeForKids, &cols.ResultURL, &cols.Reason,
	} {
		*field = strings.TrimSpace(*field)
	}
	if cols.Status == "" {
		cols.Status = defaultStatusColumn
	}
	if cols.ResultURL == "" {
		cols.ResultURL = defaultResultURLColumn
	}
	if cols.Title == "" {
		cols.Title = defaultTitleColumn
	}
	if cols.File == "" {
		cols.File = defaultFileColumn
	}
}

func (c *Config) normalizeJobs() {
	c.Jobs.UnassignedPolicy = strings.ToLower(strings.TrimSpace(c.Jobs.UnassignedPolicy))
	if c.Jobs.UnassignedPolicy == "" {
		c.Jobs.UnassignedPolicy = defaultUnassignedPolicy
	}
}

func normalizeSchedule(s Schedule) Schedule {
	times := make([]string, 0, len(s.Times))
	seen := make(map[string]struct{}, len(s.Times))
	for _, value := range s.Times {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		times = append(times, trimmed)
	}
	s.Times = times
	s.Timezone = strings.TrimSpace(s.Timezone)
	if s.Timezone == "" {
		s.Timezone = defaultScheduleTimezone
	}
	if s.DailyUploads < 0 {
		s.DailyUploads = 0
	}
	return s
}

func (c *Config) normalizeUpload() {
	c.Upload.DefaultVisibility = strings.ToLower(strings.TrimSpace(c.Upload.DefaultVisibility))
	if c.Upload.DefaultVisibility == "" {
		c.Upload.DefaultVisibility = defaultVisibility
	}
	if c.Upload.FetchLimit < 0 {
		c.Upload.FetchLimit = 0
	}
	if c.Upload.MinFreeDiskMB < 0 {
		c.Upload.MinFreeDiskMB = 0
	}
}

func (c *Config) normalizeBrowser() {
	c.Browser.StudioURL = strings.TrimRight(strings.TrimSpace(c.Browser.StudioURL), "/")
	if c.Browser.StudioURL == "" {
		c.Browser.StudioURL = defaultStudioURL
	}
	c.Browser.ChromePath = strings.TrimSpace(c.Browser.ChromePath)
	c.Browser.UserAgent = strings.TrimSpace(c.Browser.UserAgent)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("STUDIOCAST_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

package config

const (
	defaultLogDir                   = "~/.local/share/studiocast/logs"
	defaultStateDir                 = "~/.local/share/studiocast"
	defaultDownloadDir              = "~/.local/share/studiocast/downloads"
	defaultWorksheet                = "Sheet1"
	defaultStatusColumn             = "UploadYT"
	defaultAccountColumn            = "Account"
	defaultFileColumn               = "FileName"
	defaultDriveFileIDColumn        = "DriveFileId"
	defaultDriveURLColumn           = "DriveUrl"
	defaultTitleColumn              = "Title"
	defaultDescriptionColumn        = "Description"
	defaultTagsColumn               = "Tags"
	defaultHashtagsColumn           = "Hashtags"
	defaultVisibilityColumn         = "Visibility"
	defaultAlteredContentColumn     = "AlteredContent"
	defaultMadeForKidsColumn        = "MadeForKids"
	defaultResultURLColumn          = "YTUrl"
	defaultReasonColumn             = "Reason"
	defaultUnassignedPolicy         = UnassignedAny
	defaultScheduleTimezone         = "UTC"
	defaultMaxAttempts              = 3
	defaultRetryBackoffSeconds      = 30
	defaultMaxBackoffSeconds        = 300
	defaultVerifyTimeoutSeconds     = 600
	defaultVerifyPollSeconds        = 5
	defaultDownloadTimeoutSeconds   = 1800
	defaultFetchLimit               = 50
	defaultVisibility               = "public"
	defaultMinFreeDiskMB            = 1024
	defaultStudioURL                = "https://studio.youtube.com"
	defaultNavigationTimeoutSeconds = 60
	defaultStaleAfterHours          = 168
	defaultLogRetentionDays         = 1
	defaultLogFormat                = "console"
	defaultLogLevel                 = "info"
	defaultNotifyRequestTimeout     = 10
	defaultFetchAttempts            = 3
	defaultErrorRetryInterval       = 10
)

// Unassigned row policies.
const (
	UnassignedAny  = "any"
	UnassignedSkip = "skip"
)

// Visibility values accepted by the studio.
var visibilities = map[string]struct{}{
	"public":   {},
	"private":  {},
	"unlisted": {},
}

func defaultScheduleTimes() []string {
	return []string{"09:00", "15:00", "21:00"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			LogDir:      defaultLogDir,
			StateDir:    defaultStateDir,
			DownloadDir: defaultDownloadDir,
		},
		Google: Google{
			Worksheet: defaultWorksheet,
			DriveAPI:  true,
		},
		Columns: Columns{
			Status:         defaultStatusColumn,
			Account:        defaultAccountColumn,
			File:           defaultFileColumn,
			DriveFileID:    defaultDriveFileIDColumn,
			DriveURL:       defaultDriveURLColumn,
			Title:          defaultTitleColumn,
			Description:    defaultDescriptionColumn,
			Tags:           defaultTagsColumn,
			Hashtags:       defaultHashtagsColumn,
			Visibility:     defaultVisibilityColumn,
			AlteredContent: defaultAlteredContentColumn,
			MadeForKids:    defaultMadeForKidsColumn,
			ResultURL:      defaultResultURLColumn,
			Reason:         defaultReasonColumn,
		},
		Jobs: Jobs{
			UnassignedPolicy: defaultUnassignedPolicy,
		},
		Schedule: Schedule{
			Times:    defaultScheduleTimes(),
			Timezone: defaultScheduleTimezone,
		},
		Upload: Upload{
			MaxAttempts:            defaultMaxAttempts,
			RetryBackoffSeconds:    defaultRetryBackoffSeconds,
			MaxBackoffSeconds:      defaultMaxBackoffSeconds,
			VerifyTimeoutSeconds:   defaultVerifyTimeoutSeconds,
			VerifyPollSeconds:      defaultVerifyPollSeconds,
			DownloadTimeoutSeconds: defaultDownloadTimeoutSeconds,
			FetchLimit:             defaultFetchLimit,
			DefaultVisibility:      defaultVisibility,
			MinFreeDiskMB:          defaultMinFreeDiskMB,
		},
		Browser: Browser{
			Headless:                 true,
			StudioURL:                defaultStudioURL,
			NavigationTimeoutSeconds: defaultNavigationTimeoutSeconds,
		},
		Session: Session{
			StaleAfterHours: defaultStaleAfterHours,
		},
		Cleanup: Cleanup{
			DeleteAfterUpload: true,
			LogRetentionDays:  defaultLogRetentionDays,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Uploads:        true,
			Failures:       true,
			Sessions:       true,
		},
		Workflow: Workflow{
			FetchAttempts:      defaultFetchAttempts,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
	}
}

// Package drive downloads files from Google Drive, either through the Drive
// v3 API with service-account credentials or through the public download
// endpoint used by share links.
package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"studiocast/internal/config"
	"studiocast/internal/logging"
	"studiocast/internal/services"
)

const (
	defaultPublicBase = "https://drive.google.com"
	confirmCookie     = "download_warning"
	maxPageSniff      = 1 << 20
)

var confirmPattern = regexp.MustCompile(`confirm=([0-9A-Za-z_-]+)`)

// HTTPDoer describes the HTTP client used for public downloads.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client downloads Drive files by id.
type Client struct {
	api        *gdrive.Service
	http       HTTPDoer
	publicBase string
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for public downloads.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithPublicBase points public downloads at another host.
func WithPublicBase(base string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimRight(strings.TrimSpace(base), "/"); trimmed != "" {
			c.publicBase = trimmed
		}
	}
}

// WithService uses an existing Drive API service.
func WithService(svc *gdrive.Service) Option {
	return func(c *Client) {
		c.api = svc
	}
}

// New builds a client. When google.drive_api is enabled the Drive API is used
// with the configured credentials; otherwise only the public endpoint is.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cookie jar: %w", err)
	}
	c := &Client{
		http:       &http.Client{Jar: jar},
		publicBase: defaultPublicBase,
		logger:     logging.NewComponentLogger(logger, "drive"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil && cfg != nil && cfg.Google.DriveAPI {
		svc, err := gdrive.NewService(ctx,
			option.WithCredentialsFile(cfg.Google.CredentialsFile),
			option.WithScopes(gdrive.DriveReadonlyScope),
		)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "drive", "init api", "", err)
		}
		c.api = svc
	}
	return c, nil
}

// Download streams the file to w and returns the byte count.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	fileID = strings.TrimSpace(fileID)
	if fileID == "" {
		return 0, services.Permanent(services.Wrap(services.ErrSourceUnavailable, "drive", "download", "empty file id", nil))
	}
	if c.api != nil {
		n, err := c.downloadAPI(ctx, fileID, w)
		if err == nil || n > 0 || !isNotFound(err) {
			return n, err
		}
		c.logger.Debug("drive api could not see file; trying public link", logging.String("drive_file_id", fileID))
	}
	return c.downloadPublic(ctx, fileID, w)
}

func (c *Client) downloadAPI(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	resp, err := c.api.Files.Get(fileID).SupportsAllDrives(true).Context(ctx).Download()
	if err != nil {
		return 0, classify("api download", fileID, err)
	}
	defer resp.Body.Close()
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrSourceUnavailable, "drive", "api download", fileID, err)
	}
	return n, nil
}

// downloadPublic fetches uc?export=download. Large files answer with an HTML
// interstitial first; the confirm token from its cookie or body is replayed.
func (c *Client) downloadPublic(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	resp, err := c.getPublic(ctx, fileID, "")
	if err != nil {
		return 0, err
	}
	if isHTML(resp) {
		token := confirmFromCookies(resp.Cookies())
		if token == "" {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxPageSniff))
			if m := confirmPattern.FindSubmatch(body); m != nil {
				token = string(m[1])
			}
		}
		resp.Body.Close()
		if token == "" {
			return 0, services.Permanent(services.Wrap(services.ErrSourceUnavailable, "drive", "public download",
				fileID+": link returned a page instead of the file; check sharing settings", nil))
		}
		c.logger.Debug("drive confirm token received", logging.String("drive_file_id", fileID))
		resp, err = c.getPublic(ctx, fileID, token)
		if err != nil {
			return 0, err
		}
		if isHTML(resp) {
			resp.Body.Close()
			return 0, services.Wrap(services.ErrSourceUnavailable, "drive", "public download", fileID+": confirm rejected", nil)
		}
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, services.Wrap(services.ErrSourceUnavailable, "drive", "public download", fileID, err)
	}
	return n, nil
}

func (c *Client) getPublic(ctx context.Context, fileID, confirm string) (*http.Response, error) {
	q := url.Values{}
	q.Set("export", "download")
	q.Set("id", fileID)
	if confirm != "" {
		q.Set("confirm", confirm)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.publicBase+"/uc?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build drive request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrSourceUnavailable, "drive", "public download", fileID, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		resp.Body.Close()
		return nil, statusError("public download", fileID, resp.StatusCode)
	}
	return resp, nil
}

func isHTML(resp *http.Response) bool {
	return strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/html")
}

func confirmFromCookies(cookies []*http.Cookie) string {
	for _, ck := range cookies {
		if strings.HasPrefix(ck.Name, confirmCookie) {
			return ck.Value
		}
	}
	return ""
}

func isNotFound(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusNotFound
}

func classify(operation, fileID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		wrapped := services.Wrap(services.ErrSourceUnavailable, "drive", operation, fileID, err)
		if gerr.Code >= 400 && gerr.Code < 500 && gerr.Code != http.StatusTooManyRequests {
			return services.Permanent(wrapped)
		}
		return wrapped
	}
	return services.Wrap(services.ErrSourceUnavailable, "drive", operation, fileID, err)
}

func statusError(operation, fileID string, status int) error {
	err := services.Wrap(services.ErrSourceUnavailable, "drive", operation, fmt.Sprintf("%s: status %d", fileID, status), nil)
	if status >= 400 && status < 500 && status != http.StatusTooManyRequests {
		return services.Permanent(err)
	}
	return err
}

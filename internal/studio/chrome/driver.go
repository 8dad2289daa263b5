// Package chrome implements studio.Driver with chromedp against the YouTube
// Studio upload dialog.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"studiocast/internal/config"
	"studiocast/internal/deps"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/studio"
)

const (
	selCreateButton    = "ytcp-icon-button#create-icon, ytcp-button#create-icon"
	selUploadMenuItem  = "tp-yt-paper-item[test-id='upload-beta'], tp-yt-paper-item[role='menuitem']"
	selFileInput       = "input[type='file']"
	selTitle           = "ytcp-social-suggestion-input[textarea] #textbox, #title-textarea #textbox"
	selDescription     = "ytcp-mention-textbox[textarea] #textbox, #description-textarea #textbox"
	selShowMore        = "ytcp-button#toggle-button"
	selTagsInput       = "ytcp-free-text-chip-bar #text-input, #chips-input"
	selKidsYes         = "tp-yt-paper-radio-button[name='VIDEO_MADE_FOR_KIDS_MADE_FOR_KIDS']"
	selKidsNo          = "tp-yt-paper-radio-button[name='VIDEO_MADE_FOR_KIDS_NOT_MADE_FOR_KIDS']"
	selAlteredCheckbox = "ytcp-form-checkbox[name='HAS_ALTERED_CONTENT'] tp-yt-paper-checkbox, tp-yt-paper-radio-button[name='VIDEO_HAS_ALTERED_CONTENT_YES']"
	selNextButton      = "ytcp-button#next-button"
	selDoneButton      = "ytcp-button#done-button"
	wizardSteps        = 3
	stepPause          = time.Second
	resultURLScript    = `(() => { const a = document.querySelector("a.ytcp-video-info, .video-url-fadeable a"); return a ? a.href : ""; })()`
)

// Options configures the chromedp browser.
type Options struct {
	Headless          bool
	ExecPath          string
	UserAgent         string
	StudioURL         string
	NavigationTimeout time.Duration
}

// OptionsFromConfig maps the browser config section.
func OptionsFromConfig(cfg *config.Config) Options {
	if cfg == nil {
		return Options{Headless: true, StudioURL: "https://studio.youtube.com", NavigationTimeout: time.Minute}
	}
	return Options{
		Headless:          cfg.Browser.Headless,
		ExecPath:          deps.ResolveChrome(cfg.Browser.ChromePath),
		UserAgent:         cfg.Browser.UserAgent,
		StudioURL:         cfg.Browser.StudioURL,
		NavigationTimeout: time.Duration(cfg.Browser.NavigationTimeoutSeconds) * time.Second,
	}
}

// Driver is a chromedp-backed studio.Driver.
type Driver struct {
	opts    Options
	account string
	logger  *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewFactory returns a studio.Factory launching one browser per call.
func NewFactory(opts Options, logger *slog.Logger) studio.Factory {
	return func(_ context.Context, account string) (studio.Driver, error) {
		return New(opts, account, logger), nil
	}
}

// New constructs an unstarted driver.
func New(opts Options, account string, logger *slog.Logger) *Driver {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = time.Minute
	}
	opts.StudioURL = strings.TrimRight(opts.StudioURL, "/")
	return &Driver{
		opts:    opts,
		account: account,
		logger:  logging.NewComponentLogger(logger, "studio").With(logging.String(logging.FieldAccount, account)),
	}
}

// Start launches the browser.
func (d *Driver) Start(ctx context.Context) error {
	if d.browserCtx != nil {
		return nil
	}
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", d.opts.Headless),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1366, 900),
	)
	if d.opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(d.opts.ExecPath))
	}
	if d.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(d.opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	d.allocCancel = allocCancel
	d.browserCtx = browserCtx
	d.browserCancel = browserCancel

	if err := d.run(ctx, "start browser"); err != nil {
		_ = d.Close()
		return err
	}
	d.logger.Debug("browser started", logging.Bool("headless", d.opts.Headless))
	return nil
}

// SetCookies installs cookies before any navigation.
func (d *Driver) SetCookies(ctx context.Context, cookies []studio.Cookie) error {
	return d.run(ctx, "set cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		for _, c := range cookies {
			if err := setCookieParams(c).Do(ctx); err != nil {
				return fmt.Errorf("cookie %s: %w", c.Name, err)
			}
		}
		return nil
	}))
}

// OpenUpload navigates to the studio, opens the upload dialog, and selects the file.
func (d *Driver) OpenUpload(ctx context.Context, path string) error {
	return d.run(ctx, "open upload",
		chromedp.Navigate(d.opts.StudioURL),
		chromedp.WaitVisible(selCreateButton, chromedp.ByQuery),
		chromedp.Click(selCreateButton, chromedp.ByQuery),
		chromedp.WaitVisible(selUploadMenuItem, chromedp.ByQuery),
		chromedp.Click(selUploadMenuItem, chromedp.ByQuery),
		chromedp.WaitReady(selFileInput, chromedp.ByQuery),
		chromedp.SetUploadFiles(selFileInput, []string{path}, chromedp.ByQuery),
		chromedp.WaitVisible(selTitle, chromedp.ByQuery),
	)
}

// FillMetadata replaces the title and description and enters tags.
func (d *Driver) FillMetadata(ctx context.Context, meta studio.Metadata) error {
	actions := []chromedp.Action{}
	actions = append(actions, replaceText(selTitle, meta.Title)...)
	actions = append(actions, replaceText(selDescription, meta.Description)...)
	if len(meta.Tags) > 0 {
		actions = append(actions,
			chromedp.Click(selShowMore, chromedp.ByQuery),
			chromedp.WaitVisible(selTagsInput, chromedp.ByQuery),
			chromedp.SendKeys(selTagsInput, strings.Join(meta.Tags, ",")+",", chromedp.ByQuery),
		)
	}
	return d.run(ctx, "fill metadata", actions...)
}

// ApplyToggles selects the audience radio and sets the altered-content box.
func (d *Driver) ApplyToggles(ctx context.Context, toggles studio.Toggles) error {
	kids := selKidsNo
	if toggles.MadeForKids {
		kids = selKidsYes
	}
	return d.run(ctx, "apply toggles",
		chromedp.ScrollIntoView(kids, chromedp.ByQuery),
		chromedp.Click(kids, chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var class string
			var ok bool
			if err := chromedp.AttributeValue(selAlteredCheckbox, "class", &class, &ok, chromedp.ByQuery, chromedp.AtLeast(0)).Do(ctx); err != nil {
				return err
			}
			if !ok && !toggles.AlteredContent {
				return nil
			}
			checked := strings.Contains(class, "checked")
			if checked == toggles.AlteredContent {
				return nil
			}
			return chromedp.Click(selAlteredCheckbox, chromedp.ByQuery).Do(ctx)
		}),
	)
}

// Publish walks the wizard, picks the visibility, and confirms.
func (d *Driver) Publish(ctx context.Context, visibility studio.Visibility) error {
	actions := make([]chromedp.Action, 0, wizardSteps*2+3)
	for i := 0; i < wizardSteps; i++ {
		actions = append(actions,
			chromedp.Click(selNextButton, chromedp.ByQuery),
			chromedp.Sleep(stepPause),
		)
	}
	radio := fmt.Sprintf("tp-yt-paper-radio-button[name='%s']", strings.ToUpper(string(visibility)))
	actions = append(actions,
		chromedp.WaitVisible(radio, chromedp.ByQuery),
		chromedp.Click(radio, chromedp.ByQuery),
		chromedp.Click(selDoneButton, chromedp.ByQuery),
	)
	return d.run(ctx, "publish", actions...)
}

// ResultURL reads the video link from the confirmation dialog.
func (d *Driver) ResultURL(ctx context.Context) (string, error) {
	var href string
	if err := d.run(ctx, "read result url", chromedp.Evaluate(resultURLScript, &href)); err != nil {
		return "", err
	}
	return strings.TrimSpace(href), nil
}

// Cookies returns the browser's cookies.
func (d *Driver) Cookies(ctx context.Context) ([]studio.Cookie, error) {
	var out []studio.Cookie
	err := d.run(ctx, "read cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			out = append(out, fromBrowserCookie(c))
		}
		return nil
	}))
	return out, err
}

// Close shuts the browser down. It is safe to call more than once.
func (d *Driver) Close() error {
	if d.browserCancel != nil {
		d.browserCancel()
		d.browserCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.browserCtx = nil
	return nil
}

// run executes actions in the browser bounded by the navigation timeout and
// the caller's context. Failures are marked as UI driver errors; caller
// cancellation is returned as-is.
func (d *Driver) run(ctx context.Context, operation string, actions ...chromedp.Action) error {
	if d.browserCtx == nil {
		return services.Wrap(services.ErrUIDriver, "studio", operation, "browser not started", nil)
	}
	runCtx, cancel := context.WithTimeout(d.browserCtx, d.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		message := ""
		if errors.Is(err, context.DeadlineExceeded) {
			message = "timed out after " + d.opts.NavigationTimeout.String()
		}
		return services.Wrap(services.ErrUIDriver, "studio", operation, message, err)
	}
	return nil
}

func replaceText(selector, text string) []chromedp.Action {
	return []chromedp.Action{
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.KeyEvent("a", chromedp.KeyModifiers(input.ModifierCtrl)),
		chromedp.KeyEvent(kb.Backspace),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	}
}

func setCookieParams(c studio.Cookie) *network.SetCookieParams {
	params := network.SetCookie(c.Name, c.Value).
		WithDomain(c.Domain).
		WithPath(c.Path).
		WithHTTPOnly(c.HTTPOnly).
		WithSecure(c.Secure)
	if !c.Expires.IsZero() {
		expires := cdp.TimeSinceEpoch(c.Expires)
		params = params.WithExpires(&expires)
	}
	if same := sameSite(c.SameSite); same != "" {
		params = params.WithSameSite(same)
	}
	return params
}

// fromBrowserCookie converts a CDP cookie. Session cookies report a
// non-positive expiry and come back with a zero Expires.
func fromBrowserCookie(c *network.Cookie) studio.Cookie {
	converted := studio.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		HTTPOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: string(c.SameSite),
	}
	if c.Expires > 0 {
		converted.Expires = time.Unix(int64(c.Expires), 0).UTC()
	}
	return converted
}

func sameSite(value string) network.CookieSameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return network.CookieSameSiteStrict
	case "lax":
		return network.CookieSameSiteLax
	case "none":
		return network.CookieSameSiteNone
	default:
		return ""
	}
}

package chrome

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/config"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/studio"
)

func TestSameSiteMapping(t *testing.T) {
	cases := map[string]network.CookieSameSite{
		"Strict":  network.CookieSameSiteStrict,
		"lax":     network.CookieSameSiteLax,
		" NONE ":  network.CookieSameSiteNone,
		"":        "",
		"unknown": "",
	}
	for in, want := range cases {
		assert.Equal(t, want, sameSite(in), "sameSite(%q)", in)
	}
}

func TestSetCookieParamsCarriesAttributes(t *testing.T) {
	expires := time.Date(2027, 3, 1, 12, 0, 0, 0, time.UTC)
	params := setCookieParams(studio.Cookie{
		Name:     "SID",
		Value:    "v",
		Domain:   ".youtube.com",
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   true,
		SameSite: "lax",
	})

	assert.Equal(t, "SID", params.Name)
	assert.Equal(t, ".youtube.com", params.Domain)
	assert.Equal(t, "/", params.Path)
	assert.True(t, params.HTTPOnly)
	assert.True(t, params.Secure)
	assert.Equal(t, network.CookieSameSiteLax, params.SameSite)
	require.NotNil(t, params.Expires)
	assert.True(t, time.Time(*params.Expires).Equal(expires))
}

func TestSetCookieParamsOmitsUnsetExpiryAndSameSite(t *testing.T) {
	params := setCookieParams(studio.Cookie{Name: "PREF", Value: "x", Domain: ".youtube.com", Path: "/"})
	assert.Nil(t, params.Expires, "session cookie keeps no expiry")
	assert.Empty(t, params.SameSite)
}

func TestFromBrowserCookieExpiry(t *testing.T) {
	persistent := fromBrowserCookie(&network.Cookie{
		Name:     "SID",
		Value:    "v",
		Domain:   ".youtube.com",
		Path:     "/",
		Expires:  1803902400.75,
		HTTPOnly: true,
		Secure:   true,
		SameSite: network.CookieSameSiteNone,
	})
	assert.Equal(t, time.Unix(1803902400, 0).UTC(), persistent.Expires)
	assert.Equal(t, time.UTC, persistent.Expires.Location())
	assert.Equal(t, "None", persistent.SameSite)
	assert.True(t, persistent.HTTPOnly)
	assert.True(t, persistent.Secure)

	session := fromBrowserCookie(&network.Cookie{Name: "PREF", Value: "x", Expires: -1, Session: true})
	assert.True(t, session.Expires.IsZero())
	assert.Empty(t, session.SameSite)
}

func TestOptionsFromConfig(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	chromePath := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(chromePath, []byte("#!/bin/sh\n"), 0o755))

	cfg := &config.Config{Browser: config.Browser{
		Headless:                 false,
		ChromePath:               chromePath,
		UserAgent:                "agent/1.0",
		StudioURL:                "https://studio.example.test",
		NavigationTimeoutSeconds: 45,
	}}
	opts := OptionsFromConfig(cfg)

	assert.False(t, opts.Headless)
	assert.Equal(t, chromePath, opts.ExecPath)
	assert.Equal(t, "agent/1.0", opts.UserAgent)
	assert.Equal(t, "https://studio.example.test", opts.StudioURL)
	assert.Equal(t, 45*time.Second, opts.NavigationTimeout)
}

func TestOptionsFromNilConfig(t *testing.T) {
	opts := OptionsFromConfig(nil)
	assert.True(t, opts.Headless)
	assert.Equal(t, "https://studio.youtube.com", opts.StudioURL)
	assert.Equal(t, time.Minute, opts.NavigationTimeout)
}

func TestNewNormalizesOptions(t *testing.T) {
	d := New(Options{StudioURL: "https://studio.youtube.com/"}, "main", logging.NewNop())
	assert.Equal(t, "https://studio.youtube.com", d.opts.StudioURL)
	assert.Equal(t, time.Minute, d.opts.NavigationTimeout)
}

func TestUnstartedDriverReportsUIError(t *testing.T) {
	d := New(Options{}, "main", logging.NewNop())
	err := d.Publish(context.Background(), studio.VisibilityPublic)
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrUIDriver)

	require.NoError(t, d.Close())
	require.NoError(t, d.Close())
}

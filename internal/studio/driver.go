// Package studio defines the browser capability the upload engine drives.
//
// The engine never touches selectors or page structure; it calls the Driver
// operations in order (start, inject cookies, open the upload form, fill
// metadata, apply toggles, publish, poll for the result URL) and the adapter
// in the chrome subpackage maps them onto the studio web UI.
package studio

import (
	"context"
	"strings"
	"time"
)

// Visibility is the publish visibility chosen in the final dialog step.
type Visibility string

const (
	VisibilityPublic   Visibility = "public"
	VisibilityPrivate  Visibility = "private"
	VisibilityUnlisted Visibility = "unlisted"
)

// ParseVisibility normalizes a visibility name. The boolean is false for
// unknown values.
func ParseVisibility(value string) (Visibility, bool) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(value))); v {
	case VisibilityPublic, VisibilityPrivate, VisibilityUnlisted:
		return v, true
	default:
		return "", false
	}
}

// Cookie is one browser cookie in driver-neutral form.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  time.Time
	HTTPOnly bool
	Secure   bool
	// SameSite is "Strict", "Lax", "None", or empty.
	SameSite string
}

// Metadata is the sanitized text entered into the upload form.
type Metadata struct {
	Title       string
	Description string
	Tags        []string
}

// Toggles are the audience and disclosure switches of the upload form.
type Toggles struct {
	MadeForKids    bool
	AlteredContent bool
}

// Driver is one browser context bound to one account.
type Driver interface {
	Start(ctx context.Context) error
	SetCookies(ctx context.Context, cookies []Cookie) error
	OpenUpload(ctx context.Context, path string) error
	FillMetadata(ctx context.Context, meta Metadata) error
	ApplyToggles(ctx context.Context, toggles Toggles) error
	Publish(ctx context.Context, visibility Visibility) error
	// ResultURL returns the published video link, or "" while the studio has
	// not produced one yet.
	ResultURL(ctx context.Context) (string, error)
	// Cookies returns the browser's current cookies for re-saving.
	Cookies(ctx context.Context) ([]Cookie, error)
	Close() error
}

// Factory creates a fresh driver for an account.
type Factory func(ctx context.Context, account string) (Driver, error)

// Package session loads, injects, and persists per-account browser cookie
// sessions.
//
// A session file is a JSON array of cookie records as produced by common
// browser export tools. The store never acquires cookies itself; a missing or
// empty file fails the account's jobs with SessionMissing until an operator
// supplies one. Last-used timestamps live in the ledger so staleness survives
// restarts; the file modification time is the fallback.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"studiocast/internal/config"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/studio"
)

// UsageStore persists the last-used timestamp per account.
type UsageStore interface {
	SessionLastUsed(ctx context.Context, account string) (time.Time, bool, error)
	RecordSessionUse(ctx context.Context, account string, at time.Time) error
}

// Session is one account's cookie collection.
type Session struct {
	Account  string
	Path     string
	Cookies  []studio.Cookie
	LastUsed time.Time
}

// Store resolves session files from config.
type Store struct {
	cfg        *config.Config
	usage      UsageStore
	logger     *slog.Logger
	staleAfter time.Duration
	now        func() time.Time

	mu sync.Mutex
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs a session store. usage may be nil, in which case
// last-used values fall back to file modification times and Touch only
// updates the in-memory session.
func NewStore(cfg *config.Config, usage UsageStore, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		cfg:    cfg,
		usage:  usage,
		logger: logging.NewComponentLogger(logger, "session"),
		now:    time.Now,
	}
	if cfg != nil && cfg.Session.StaleAfterHours > 0 {
		s.staleAfter = time.Duration(cfg.Session.StaleAfterHours) * time.Hour
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load reads the account's cookie file.
func (s *Store) Load(ctx context.Context, account string) (*Session, error) {
	acct, ok := s.cfg.AccountByName(account)
	if !ok {
		return nil, services.Wrap(services.ErrSessionMissing, "session", "load", fmt.Sprintf("unknown account %q", account), nil)
	}
	path := strings.TrimSpace(acct.SessionFile)
	if path == "" {
		return nil, services.Wrap(services.ErrSessionMissing, "session", "load", fmt.Sprintf("no session file for %s", acct.Name), nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrSessionMissing, "session", "load", "session file not found: "+path, nil)
		}
		return nil, services.Wrap(services.ErrSessionMissing, "session", "load", "read "+path, err)
	}
	cookies, err := decodeCookies(data)
	if err != nil {
		return nil, services.Wrap(services.ErrSessionMissing, "session", "load", "parse "+path, err)
	}
	if len(cookies) == 0 {
		return nil, services.Wrap(services.ErrSessionMissing, "session", "load", "session file has no cookies: "+path, nil)
	}

	sess := &Session{Account: acct.Name, Path: path, Cookies: cookies}
	sess.LastUsed = s.lastUsed(ctx, acct.Name, path)

	s.logger.Debug("session loaded",
		logging.String(logging.FieldAccount, acct.Name),
		logging.Int("cookies", len(cookies)),
		logging.Time("last_used", sess.LastUsed),
	)
	return sess, nil
}

// Inject applies the session cookies to a started driver. Cookies marked
// SameSite=None without Secure are downgraded to Lax, which browsers
// otherwise reject.
func (s *Store) Inject(ctx context.Context, sess *Session, driver studio.Driver) error {
	if sess == nil || len(sess.Cookies) == 0 {
		return services.Wrap(services.ErrSessionMissing, "session", "inject", "empty session", nil)
	}
	cookies := make([]studio.Cookie, len(sess.Cookies))
	for i, c := range sess.Cookies {
		if strings.EqualFold(c.SameSite, "None") && !c.Secure {
			c.SameSite = "Lax"
		}
		cookies[i] = c
	}
	return driver.SetCookies(ctx, cookies)
}

// Touch marks the session used now and persists the timestamp.
func (s *Store) Touch(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	now := s.now().UTC()
	sess.LastUsed = now
	if s.usage == nil {
		return nil
	}
	if err := s.usage.RecordSessionUse(ctx, sess.Account, now); err != nil {
		return services.Wrap(services.ErrTransientIO, "session", "touch", sess.Account, err)
	}
	return nil
}

// Save atomically rewrites the session file with refreshed cookies. An empty
// cookie list leaves the file untouched.
func (s *Store) Save(_ context.Context, sess *Session, cookies []studio.Cookie) error {
	if sess == nil || len(cookies) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := encodeCookies(cookies)
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}
	dir := filepath.Dir(sess.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(sess.Path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("chmod temp session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp session: %w", err)
	}
	if err := os.Rename(tmpName, sess.Path); err != nil {
		cleanup()
		return fmt.Errorf("replace session file: %w", err)
	}
	sess.Cookies = append(sess.Cookies[:0:0], cookies...)
	s.logger.Debug("session saved",
		logging.String(logging.FieldAccount, sess.Account),
		logging.Int("cookies", len(cookies)),
	)
	return nil
}

// Stale reports whether the session has gone unused longer than the
// configured threshold. A zero threshold disables the check.
func (s *Store) Stale(sess *Session, now time.Time) bool {
	if sess == nil || s.staleAfter <= 0 || sess.LastUsed.IsZero() {
		return false
	}
	return now.Sub(sess.LastUsed) > s.staleAfter
}

// StaleAfter returns the configured staleness threshold.
func (s *Store) StaleAfter() time.Duration {
	return s.staleAfter
}

func (s *Store) lastUsed(ctx context.Context, account, path string) time.Time {
	if s.usage != nil {
		at, ok, err := s.usage.SessionLastUsed(ctx, account)
		if err != nil {
			s.logger.Warn("session usage lookup failed; using file time",
				logging.String(logging.FieldAccount, account),
				logging.Error(err),
				logging.String(logging.FieldEventType, "session_usage_lookup_failed"),
				logging.String(logging.FieldErrorHint, "check the ledger database"),
			)
		} else if ok {
			return at
		}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime().UTC()
}

// cookieRecord is the on-disk cookie shape. Expiry may arrive under any of
// three keys depending on the export tool.
type cookieRecord struct {
	Name           string   `json:"name"`
	Value          string   `json:"value"`
	Domain         string   `json:"domain,omitempty"`
	Path           string   `json:"path,omitempty"`
	Expiry         *float64 `json:"expiry,omitempty"`
	Expires        *float64 `json:"expires,omitempty"`
	ExpirationDate *float64 `json:"expirationDate,omitempty"`
	HTTPOnly       bool     `json:"httpOnly"`
	Secure         bool     `json:"secure"`
	SameSite       string   `json:"sameSite,omitempty"`
}

func decodeCookies(data []byte) ([]studio.Cookie, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, nil
	}
	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	cookies := make([]studio.Cookie, 0, len(records))
	for _, r := range records {
		if strings.TrimSpace(r.Name) == "" {
			continue
		}
		path := r.Path
		if path == "" {
			path = "/"
		}
		cookies = append(cookies, studio.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     path,
			Expires:  firstExpiry(r.Expiry, r.Expires, r.ExpirationDate),
			HTTPOnly: r.HTTPOnly,
			Secure:   r.Secure,
			SameSite: normalizeSameSite(r.SameSite),
		})
	}
	return cookies, nil
}

func encodeCookies(cookies []studio.Cookie) ([]byte, error) {
	records := make([]cookieRecord, 0, len(cookies))
	for _, c := range cookies {
		record := cookieRecord{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite,
		}
		if !c.Expires.IsZero() {
			seconds := float64(c.Expires.Unix())
			record.Expiry = &seconds
		}
		records = append(records, record)
	}
	return json.MarshalIndent(records, "", "  ")
}

func firstExpiry(values ...*float64) time.Time {
	for _, v := range values {
		if v == nil || *v <= 0 || math.IsNaN(*v) || math.IsInf(*v, 0) {
			continue
		}
		sec, frac := math.Modf(*v)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return time.Time{}
}

// normalizeSameSite maps export-tool spellings onto Strict, Lax, None.
func normalizeSameSite(value string) string {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return "Strict"
	case "lax":
		return "Lax"
	case "none", "no_restriction":
		return "None"
	default:
		return ""
	}
}

package blob

import (
	"net/url"
	"regexp"
	"strings"

	"studiocast/internal/services"
)

// Kind identifies how a reference is resolved.
type Kind int

const (
	KindLocal Kind = iota
	KindDrive
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindDrive:
		return "drive"
	case KindHTTP:
		return "http"
	default:
		return "local"
	}
}

// Ref is a parsed blob reference.
type Ref struct {
	Kind  Kind
	Value string
}

var (
	driveFilePath = regexp.MustCompile(`/file/d/([0-9A-Za-z_-]+)`)
	driveIDChars  = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)
)

// ParseRef classifies a reference: http(s) URLs (Drive share links become
// Drive ids), drive:<id> or gdrive://<id>, otherwise a local path. An empty
// reference is a permanent SourceUnavailable failure.
func ParseRef(raw string) (Ref, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Ref{}, structural("empty source reference")
	}
	lower := strings.ToLower(value)
	switch {
	case strings.HasPrefix(lower, "gdrive://"):
		return driveRef(value[len("gdrive://"):])
	case strings.HasPrefix(lower, "drive:"):
		return driveRef(strings.TrimPrefix(value[len("drive:"):], "//"))
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		u, err := url.Parse(value)
		if err != nil || u.Host == "" {
			return Ref{}, structural("malformed url " + value)
		}
		if id, ok := DriveFileID(u); ok {
			return Ref{Kind: KindDrive, Value: id}, nil
		}
		return Ref{Kind: KindHTTP, Value: u.String()}, nil
	default:
		return Ref{Kind: KindLocal, Value: value}, nil
	}
}

// DriveFileID extracts the file id from Drive share and download links.
func DriveFileID(u *url.URL) (string, bool) {
	host := strings.ToLower(u.Hostname())
	if host != "drive.google.com" && host != "docs.google.com" {
		return "", false
	}
	if m := driveFilePath.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	if id := u.Query().Get("id"); id != "" && driveIDChars.MatchString(id) {
		return id, true
	}
	return "", false
}

func driveRef(id string) (Ref, error) {
	id = strings.Trim(strings.TrimSpace(id), "/")
	if id == "" || !driveIDChars.MatchString(id) {
		return Ref{}, structural("malformed drive id " + id)
	}
	return Ref{Kind: KindDrive, Value: id}, nil
}

func structural(message string) error {
	return services.Permanent(services.Wrap(services.ErrSourceUnavailable, "blob", "parse reference", message, nil))
}

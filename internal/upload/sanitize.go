package upload

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"studiocast/internal/jobsource"
	"studiocast/internal/services"
	"studiocast/internal/studio"
)

const (
	maxTitleRunes       = 100
	maxDescriptionRunes = 5000
	maxTagsLength       = 500
)

// Sanitize builds the studio metadata for a job. Text is NFC-normalized,
// stripped of control characters and angle brackets, and truncated to the
// studio's limits. An empty title is a ValidationError.
func Sanitize(job jobsource.Job) (studio.Metadata, error) {
	title := truncateRunes(strings.Join(strings.Fields(cleanText(job.Title, false)), " "), maxTitleRunes)
	title = strings.TrimSpace(title)
	if title == "" {
		return studio.Metadata{}, services.Wrap(services.ErrValidation, "upload", "sanitize", "title is empty", nil)
	}

	description := strings.TrimSpace(cleanText(job.Description, true))
	if tags := hashtagLine(job.Hashtags); tags != "" {
		if description != "" {
			description += "\n" + tags
		} else {
			description = tags
		}
	}
	description = truncateRunes(description, maxDescriptionRunes)

	return studio.Metadata{
		Title:       title,
		Description: description,
		Tags:        sanitizeTags(job.Tags),
	}, nil
}

func cleanText(value string, keepNewlines bool) string {
	value = norm.NFC.String(value)
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '<' || r == '>':
		case r == '\n' && keepNewlines:
			b.WriteRune(r)
		case r == '\r' && keepNewlines:
		case r == '\t' || r == '\n' || r == '\r':
			b.WriteRune(' ')
		case unicode.IsControl(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func hashtagLine(hashtags []string) string {
	parts := make([]string, 0, len(hashtags))
	for _, tag := range hashtags {
		tag = strings.Join(strings.Fields(cleanText(tag, false)), "")
		if tag == "" || tag == "#" {
			continue
		}
		parts = append(parts, tag)
	}
	return strings.Join(parts, " ")
}

// sanitizeTags de-duplicates tags case-insensitively and keeps them while the
// studio's tag length budget allows: commas between tags count, and tags with
// spaces count two extra for their quotes.
func sanitizeTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	used := 0
	for _, tag := range tags {
		tag = strings.Join(strings.Fields(strings.ReplaceAll(cleanText(tag, false), ",", " ")), " ")
		if tag == "" {
			continue
		}
		key := strings.ToLower(tag)
		if _, dup := seen[key]; dup {
			continue
		}
		cost := utf8.RuneCountInString(tag)
		if strings.Contains(tag, " ") {
			cost += 2
		}
		if len(out) > 0 {
			cost++
		}
		if used+cost > maxTagsLength {
			break
		}
		seen[key] = struct{}{}
		used += cost
		out = append(out, tag)
	}
	return out
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return strings.TrimRightFunc(string(runes[:limit]), unicode.IsSpace)
}

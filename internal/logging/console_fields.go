package logging

import (
	"strings"
)

type consoleField struct {
	label string
	value string
}

// Keys shown first, in this order, on info-level console lines.
var highlightKeys = []string{
	FieldAlert,
	FieldEventType,
	FieldErrorKind,
	"error",
	FieldErrorHint,
	FieldImpact,
	"title",
	"result_url",
	"attempt",
	"max_attempts",
	"backoff",
	"next_slot",
}

// selectFields orders fields for console output. Info lines drop subject keys
// already shown in the header and identifiers that only matter when debugging.
func selectFields(attrs []kv, debug bool) []consoleField {
	if len(attrs) == 0 {
		return nil
	}
	used := make([]bool, len(attrs))
	out := make([]consoleField, 0, len(attrs))
	add := func(idx int) {
		used[idx] = true
		attr := attrs[idx]
		if !debug && (isSubjectKey(attr.key) || isDebugOnlyKey(attr.key)) {
			return
		}
		out = append(out, consoleField{label: displayLabel(attr.key), value: formatValueForKey(attr.key, attr.value)})
	}
	for _, key := range highlightKeys {
		for idx, attr := range attrs {
			if !used[idx] && attr.key == key {
				add(idx)
				break
			}
		}
	}
	for idx := range attrs {
		if !used[idx] {
			add(idx)
		}
	}
	return out
}

func isSubjectKey(key string) bool {
	switch key {
	case FieldAccount, FieldJobRow, FieldState:
		return true
	}
	return false
}

func isDebugOnlyKey(key string) bool {
	switch key {
	case FieldCorrelationID, FieldAttemptID, "cookie_count", "selector":
		return true
	}
	return strings.HasSuffix(key, "_path") || strings.HasSuffix(key, "_dir")
}

func displayLabel(key string) string {
	switch key {
	case FieldAlert:
		return "Alert"
	case FieldEventType:
		return "Event"
	case FieldErrorKind:
		return "Kind"
	case FieldErrorHint:
		return "Hint"
	case "result_url":
		return "URL"
	default:
		return titleizeKey(key)
	}
}

func titleizeKey(key string) string {
	parts := strings.FieldsFunc(key, func(r rune) bool {
		return r == '_' || r == '-' || r == '.'
	})
	for i, part := range parts {
		lower := strings.ToLower(part)
		parts[i] = strings.ToUpper(lower[:1]) + lower[1:]
	}
	return strings.Join(parts, " ")
}

package logging

import "strings"

// FormatSubject builds the account/row/state subject string used in console output.
func FormatSubject(account, row, state string) string {
	account = strings.TrimSpace(account)
	row = strings.TrimSpace(row)
	state = strings.TrimSpace(state)
	parts := make([]string, 0, 2)
	if account != "" {
		parts = append(parts, account)
	}
	switch {
	case row != "" && state != "":
		parts = append(parts, "Row #"+row+" ("+state+")")
	case row != "":
		parts = append(parts, "Row #"+row)
	case state != "":
		parts = append(parts, state)
	}
	return strings.Join(parts, " · ")
}

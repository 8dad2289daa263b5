package jobsource

import (
	"context"
	"strings"
)

// Status is the lifecycle value stored in the status column.
type Status string

const (
	StatusNew        Status = "New"
	StatusInProgress Status = "InProgress"
	StatusDone       Status = "Done"
	StatusFailed     Status = "Failed"
)

// ParseStatus maps a cell value to a Status, ignoring case and surrounding space.
// Unknown values are returned as-is.
func ParseStatus(value string) Status {
	trimmed := strings.TrimSpace(value)
	for _, s := range []Status{StatusNew, StatusInProgress, StatusDone, StatusFailed} {
		if strings.EqualFold(trimmed, string(s)) {
			return s
		}
	}
	return Status(trimmed)
}

// Job is one spreadsheet row describing a video to upload.
type Job struct {
	RowIndex       int
	Account        string
	Source         string
	DriveFileID    string
	DriveURL       string
	Title          string
	Description    string
	Tags           []string
	Hashtags       []string
	Visibility     string
	AlteredContent *bool
	MadeForKids    *bool
	Status         Status
	ResultURL      string
}

// Assigned reports whether the row names an account.
func (j Job) Assigned() bool {
	return strings.TrimSpace(j.Account) != ""
}

// CellUpdate is a single cell write. Rows and columns are 1-based; row 1 is
// the header.
type CellUpdate struct {
	Row   int
	Col   int
	Value string
}

// Table is the remote spreadsheet the jobs live in.
type Table interface {
	// Read returns every row including the header.
	Read(ctx context.Context) ([][]string, error)
	// Cell returns one cell value; missing cells read as empty.
	Cell(ctx context.Context, row, col int) (string, error)
	// Write applies the updates as one batch.
	Write(ctx context.Context, updates []CellUpdate) error
}

// ParseFlag interprets yes/no style cells. The second result is false when
// the value is empty or unrecognized.
func ParseFlag(value string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1":
		return true, true
	case "no", "n", "false", "0":
		return false, true
	default:
		return false, false
	}
}

func parseFlagPtr(value string) *bool {
	v, ok := ParseFlag(value)
	if !ok {
		return nil
	}
	return &v
}

// splitTags splits a comma-separated tag cell.
func splitTags(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			out = append(out, tag)
		}
	}
	return out
}

// splitHashtags accepts space or comma separated hashtags and adds the
// leading # where missing.
func splitHashtags(value string) []string {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimLeft(field, "#")
		if field == "" {
			continue
		}
		out = append(out, "#"+field)
	}
	return out
}

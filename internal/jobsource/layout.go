package jobsource

import (
	"fmt"
	"strings"

	"studiocast/internal/config"
	"studiocast/internal/services"
)

// layout holds 1-based column positions resolved from the header row. Zero
// means the column is absent.
type layout struct {
	status, account, file, driveFileID, driveURL    int
	title, description, tags, hashtags, visibility int
	altered, kids, resultURL, reason                int
}

func resolveLayout(header []string, cols config.Columns, requireAccount bool) (layout, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := index[key]; !dup {
			index[key] = i + 1
		}
	}
	lookup := func(name string) int {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return 0
		}
		return index[name]
	}

	l := layout{
		status:      lookup(cols.Status),
		account:     lookup(cols.Account),
		file:        lookup(cols.File),
		driveFileID: lookup(cols.DriveFileID),
		driveURL:    lookup(cols.DriveURL),
		title:       lookup(cols.Title),
		description: lookup(cols.Description),
		tags:        lookup(cols.Tags),
		hashtags:    lookup(cols.Hashtags),
		visibility:  lookup(cols.Visibility),
		altered:     lookup(cols.AlteredContent),
		kids:        lookup(cols.MadeForKids),
		resultURL:   lookup(cols.ResultURL),
		reason:      lookup(cols.Reason),
	}

	required := []struct {
		name string
		pos  int
	}{
		{cols.Status, l.status},
		{cols.Title, l.title},
		{cols.File, l.file},
		{cols.ResultURL, l.resultURL},
	}
	if requireAccount {
		required = append(required, struct {
			name string
			pos  int
		}{cols.Account, l.account})
	}
	var missing []string
	for _, req := range required {
		if req.pos == 0 {
			missing = append(missing, fmt.Sprintf("%q", req.name))
		}
	}
	if len(missing) > 0 {
		return layout{}, services.Wrap(services.ErrSchema, "jobsource", "resolve columns",
			"missing column(s) "+strings.Join(missing, ", ")+" in header row", nil)
	}
	return l, nil
}

func cell(row []string, col int) string {
	if col <= 0 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

func (l layout) job(rowIndex int, row []string) Job {
	return Job{
		RowIndex:       rowIndex,
		Account:        cell(row, l.account),
		Source:         cell(row, l.file),
		DriveFileID:    cell(row, l.driveFileID),
		DriveURL:       cell(row, l.driveURL),
		Title:          cell(row, l.title),
		Description:    cell(row, l.description),
		Tags:           splitTags(cell(row, l.tags)),
		Hashtags:       splitHashtags(cell(row, l.hashtags)),
		Visibility:     strings.ToLower(cell(row, l.visibility)),
		AlteredContent: parseFlagPtr(cell(row, l.altered)),
		MadeForKids:    parseFlagPtr(cell(row, l.kids)),
		Status:         ParseStatus(cell(row, l.status)),
		ResultURL:      cell(row, l.resultURL),
	}
}

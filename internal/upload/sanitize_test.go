package upload_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/jobsource"
	"studiocast/internal/services"
	"studiocast/internal/upload"
)

func TestSanitizeCleansText(t *testing.T) {
	meta, err := upload.Sanitize(jobsource.Job{
		Title:       "  Café <b>night</b>\u0007\n  live ",
		Description: "Line one\r\nLine <two>\x00",
		Hashtags:    []string{"#go", "#", " #tips "},
	})
	require.NoError(t, err)
	assert.Equal(t, "Café bnight/b live", meta.Title)
	assert.Equal(t, "Line one\nLine two\n#go #tips", meta.Description)
}

func TestSanitizeLimits(t *testing.T) {
	meta, err := upload.Sanitize(jobsource.Job{
		Title:       strings.Repeat("é", 150),
		Description: strings.Repeat("x", 6000),
	})
	require.NoError(t, err)
	assert.Equal(t, 100, utf8.RuneCountInString(meta.Title))
	assert.Equal(t, 5000, utf8.RuneCountInString(meta.Description))
}

func TestSanitizeTags(t *testing.T) {
	meta, err := upload.Sanitize(jobsource.Job{
		Title: "t",
		Tags:  []string{"Go", "go", "golang tips", "", "a,b"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Go", "golang tips", "a b"}, meta.Tags)

	long := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		long = append(long, strings.Repeat(string(rune('a'+i%26)), 9)+string(rune('A'+i/26)))
	}
	meta, err = upload.Sanitize(jobsource.Job{Title: "t", Tags: long})
	require.NoError(t, err)
	total := 0
	for i, tag := range meta.Tags {
		total += len(tag)
		if i > 0 {
			total++
		}
	}
	assert.LessOrEqual(t, total, 500)
	assert.Len(t, meta.Tags, 45)
}

func TestSanitizeEmptyTitle(t *testing.T) {
	_, err := upload.Sanitize(jobsource.Job{Title: " \t<>\u0000 "})
	require.Error(t, err)
	assert.Equal(t, services.KindValidation, services.KindOf(err))
	assert.False(t, services.Retryable(err))
}

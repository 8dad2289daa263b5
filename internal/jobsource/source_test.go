package jobsource_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/jobsource"
	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/testsupport"
)

var header = []string{"UploadYT", "Account", "FileName", "DriveFileId", "DriveUrl", "Title", "Description", "Tags", "Hashtags", "Visibility", "AlteredContent", "MadeForKids", "YTUrl", "Reason"}

func newSource(t *testing.T, table *testsupport.MemTable) *jobsource.Source {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	return jobsource.New(table, cfg, logging.NewNop())
}

func sampleTable() *testsupport.MemTable {
	return testsupport.NewMemTable(header,
		[]string{"New", "main", "/videos/a.mp4", "", "", "Video A", "About A", "go, code ,", "#go tips", "Unlisted", "yes", "no", "", ""},
		[]string{"Done", "main", "/videos/b.mp4", "", "", "Video B", "", "", "", "", "", "", "https://youtu.be/b", ""},
		[]string{" new ", "", "", "1AbC", "", "Video C", "", "", "", "", "", "", "", ""},
		[]string{"InProgress", "alt", "/videos/d.mp4", "", "", "Video D", "", "", "", "", "", "", "", ""},
		[]string{"NEW", "alt", "/videos/e.mp4"},
	)
}

func TestFetchPendingReturnsOnlyNewRows(t *testing.T) {
	src := newSource(t, sampleTable())

	jobs, err := src.FetchPending(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)

	first := jobs[0]
	assert.Equal(t, 2, first.RowIndex)
	assert.Equal(t, "main", first.Account)
	assert.Equal(t, "/videos/a.mp4", first.Source)
	assert.Equal(t, "Video A", first.Title)
	assert.Equal(t, []string{"go", "code"}, first.Tags)
	assert.Equal(t, []string{"#go", "#tips"}, first.Hashtags)
	assert.Equal(t, "unlisted", first.Visibility)
	require.NotNil(t, first.AlteredContent)
	assert.True(t, *first.AlteredContent)
	require.NotNil(t, first.MadeForKids)
	assert.False(t, *first.MadeForKids)
	assert.Equal(t, jobsource.StatusNew, first.Status)

	unassigned := jobs[1]
	assert.Equal(t, 4, unassigned.RowIndex)
	assert.False(t, unassigned.Assigned())
	assert.Equal(t, "1AbC", unassigned.DriveFileID)
	assert.Nil(t, unassigned.AlteredContent, "empty flag cells stay unset")

	ragged := jobs[2]
	assert.Equal(t, 6, ragged.RowIndex)
	assert.Empty(t, ragged.Title)
}

func TestFetchPendingHonoursLimit(t *testing.T) {
	src := newSource(t, sampleTable())
	jobs, err := src.FetchPending(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, 2, jobs[0].RowIndex)
}

func TestFetchPendingMissingColumnIsSchemaError(t *testing.T) {
	table := testsupport.NewMemTable([]string{"UploadYT", "FileName", "YTUrl"}, []string{"New", "a.mp4", ""})
	src := newSource(t, table)

	_, err := src.FetchPending(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrSchema))
	assert.Contains(t, err.Error(), `"Title"`)
	assert.False(t, services.Retryable(err))
}

func TestFetchPendingRemoteFailureIsTransient(t *testing.T) {
	table := sampleTable()
	table.FailReads = 1
	table.ReadErr = errors.New("503 backend error")
	src := newSource(t, table)

	_, err := src.FetchPending(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, services.KindTransientIO, services.KindOf(err))
	assert.True(t, services.Retryable(err))

	jobs, err := src.FetchPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, jobs, 3)
}

func TestClaimIsExclusiveAcrossWorkers(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	jobs, err := src.FetchPending(context.Background(), 1)
	require.NoError(t, err)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := src.Claim(context.Background(), jobs[0])
			if err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, "InProgress", table.Value(2, "UploadYT"))
}

func TestClaimLosesWhenRowChangedAfterFetch(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	jobs, err := src.FetchPending(context.Background(), 1)
	require.NoError(t, err)

	table.Set(2, "UploadYT", "InProgress")
	before := len(table.Writes())

	ok, err := src.Claim(context.Background(), jobs[0])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, table.Writes(), before, "lost claim must not write")
}

func TestClaimSkipsRowWhoseTitleMoved(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	jobs, err := src.FetchPending(context.Background(), 1)
	require.NoError(t, err)

	table.Set(2, "Title", "Inserted row")
	ok, err := src.Claim(context.Background(), jobs[0])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "New", table.Value(2, "UploadYT"))
}

func TestCompleteIsIdempotent(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	ctx := context.Background()
	jobs, err := src.FetchPending(ctx, 1)
	require.NoError(t, err)
	ok, err := src.Claim(ctx, jobs[0])
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, src.Complete(ctx, jobs[0], "https://youtu.be/a"))
	require.NoError(t, src.Complete(ctx, jobs[0], "https://youtu.be/a"))

	assert.Equal(t, "Done", table.Value(2, "UploadYT"))
	assert.Equal(t, "https://youtu.be/a", table.Value(2, "YTUrl"))

	pending, err := src.FetchPending(ctx, 0)
	require.NoError(t, err)
	for _, job := range pending {
		assert.NotEqual(t, 2, job.RowIndex, "terminal rows are never pending")
	}
}

func TestFailWritesKindAsReason(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	ctx := context.Background()
	jobs, err := src.FetchPending(ctx, 1)
	require.NoError(t, err)
	_, err = src.Claim(ctx, jobs[0])
	require.NoError(t, err)

	require.NoError(t, src.Fail(ctx, jobs[0], string(services.KindValidation)))
	require.NoError(t, src.Fail(ctx, jobs[0], string(services.KindValidation)))
	assert.Equal(t, "Failed", table.Value(2, "UploadYT"))
	assert.Equal(t, "ValidationError", table.Value(2, "Reason"))
}

func TestCompleteRequiresClaim(t *testing.T) {
	table := sampleTable()
	src := newSource(t, table)
	ctx := context.Background()
	jobs, err := src.FetchPending(ctx, 1)
	require.NoError(t, err)

	err = src.Complete(ctx, jobs[0], "https://youtu.be/a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, jobsource.ErrNotClaimed))
	assert.Equal(t, "New", table.Value(2, "UploadYT"))
}

func TestParseFlag(t *testing.T) {
	for input, want := range map[string]bool{"yes": true, "Y": true, "TRUE": true, "1": true, "no": false, "n": false, "False": false, "0": false} {
		got, ok := jobsource.ParseFlag(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}
	_, ok := jobsource.ParseFlag("maybe")
	assert.False(t, ok)
}

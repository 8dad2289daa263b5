package drive_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/logging"
	"studiocast/internal/services"
	"studiocast/internal/services/drive"
)

func newClient(t *testing.T, srv *httptest.Server) *drive.Client {
	t.Helper()
	client, err := drive.New(context.Background(), nil, logging.NewNop(), drive.WithPublicBase(srv.URL))
	require.NoError(t, err)
	return client
}

func TestDownloadPublicDirect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uc", r.URL.Path)
		assert.Equal(t, "abc", r.URL.Query().Get("id"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video-bytes"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	n, err := newClient(t, srv).Download(context.Background(), "abc", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "video-bytes", buf.String())
}

func TestDownloadPublicConfirmCookie(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("confirm") == "" {
			http.SetCookie(w, &http.Cookie{Name: "download_warning_123", Value: "tok9"})
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte("<html>virus scan warning</html>"))
			return
		}
		assert.Equal(t, "tok9", r.URL.Query().Get("confirm"))
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("big-file"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	_, err := newClient(t, srv).Download(context.Background(), "big", &buf)
	require.NoError(t, err)
	assert.Equal(t, "big-file", buf.String())
	assert.Equal(t, 2, calls)
}

func TestDownloadPublicConfirmFromBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("confirm") == "" {
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(`<a href="/uc?export=download&amp;confirm=t_X-1&amp;id=big">Download anyway</a>`))
			return
		}
		assert.Equal(t, "t_X-1", r.URL.Query().Get("confirm"))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	var buf bytes.Buffer
	_, err := newClient(t, srv).Download(context.Background(), "big", &buf)
	require.NoError(t, err)
	assert.Equal(t, "ok", buf.String())
}

func TestDownloadErrorsClassified(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()
	client := newClient(t, srv)

	_, err := client.Download(context.Background(), "missing", &bytes.Buffer{})
	require.Error(t, err)
	assert.Equal(t, services.KindSourceUnavailable, services.KindOf(err))
	assert.False(t, services.Retryable(err), "404 is permanent")

	status = http.StatusBadGateway
	_, err = client.Download(context.Background(), "flaky", &bytes.Buffer{})
	require.Error(t, err)
	assert.True(t, services.Retryable(err), "5xx is retryable")

	_, err = client.Download(context.Background(), " ", &bytes.Buffer{})
	require.Error(t, err)
	assert.False(t, services.Retryable(err))
}

func TestDownloadPageWithoutTokenIsPermanent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>Sign in</html>"))
	}))
	defer srv.Close()

	_, err := newClient(t, srv).Download(context.Background(), "private", &bytes.Buffer{})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrSourceUnavailable)
	assert.False(t, services.Retryable(err))
}

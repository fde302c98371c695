package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherDownloadWritesBody(t *testing.T) {
	t.Parallel()

	agents := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents <- r.UserAgent()
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("fake-mp4-bytes"))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "raw")
	f := New(Config{UserAgent: "vts3a-test", Timeout: 5 * time.Second})

	n, err := f.Download(context.Background(), srv.URL+"/clip.mp4", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len("fake-mp4-bytes")), n)
	assert.Equal(t, "vts3a-test", <-agents)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "fake-mp4-bytes", string(data))
}

func TestFetcherDownloadSameURLTwice(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("audio"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(Config{})
	for i := 0; i < 2; i++ {
		_, err := f.Download(context.Background(), srv.URL+"/a.mp3", filepath.Join(dir, "raw"))
		require.NoError(t, err, "attempt %d", i)
	}
}

func TestFetcherDownloadNon2xxWritesNothing(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "raw")
	_, err := New(Config{}).Download(context.Background(), srv.URL+"/missing.mp4", dest)
	require.Error(t, err)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetcherDownloadBodyLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(make([]byte, 1024))
	}))
	defer srv.Close()

	dest := filepath.Join(t.TempDir(), "raw")
	_, err := New(Config{MaxBodyBytes: 16}).Download(context.Background(), srv.URL+"/big.wav", dest)
	require.ErrorContains(t, err, "exceeds")
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestFetcherDownloadCanceled(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{}).Download(ctx, srv.URL+"/slow.mp4", filepath.Join(t.TempDir(), "raw"))
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{})
	var body []byte
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &body, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{StatusCode: http.StatusOK, Body: []byte("body")})
	assert.Equal(t, "body", string(body))
	assert.NoError(t, fetchErr)

	hooks.onResponse(&colly.Response{StatusCode: http.StatusNotModified})
	assert.ErrorContains(t, fetchErr, "unexpected status 304")

	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, errors.New("Bad Gateway"))
	assert.ErrorContains(t, fetchErr, "status 502")

	hooks.onError(nil, errors.New("boom"))
	assert.EqualError(t, fetchErr, "boom")
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}

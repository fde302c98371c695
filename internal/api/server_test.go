package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
)

const validJob = `{"url":"https://example.com/v?id=1","folder":"shows","uuid":"3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"}`

type fakeSubmitter struct {
	mu   sync.Mutex
	jobs []convert.Job
	ctxs []context.Context
	err  error
}

func (f *fakeSubmitter) Submit(ctx context.Context, job convert.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	f.ctxs = append(f.ctxs, ctx)
	return nil
}

func post(t *testing.T, srv *Server, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestUploadAcceptsValidJob(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	srv := NewServer(sub, Config{}, zap.NewNop())

	rec := post(t, srv, "application/json", validJob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MessageSuccess, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	require.Len(t, sub.jobs, 1)
	assert.Equal(t, convert.Job{
		URL:    "https://example.com/v?id=1",
		Folder: "shows",
		UUID:   "3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f",
	}, sub.jobs[0])
	_, hasDeadline := sub.ctxs[0].Deadline()
	assert.False(t, hasDeadline, "background jobs must not inherit the request deadline")
}

func TestUploadRejectsWithReason(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{"form content type", "application/x-www-form-urlencoded", validJob, convert.ReasonNotJSON},
		{"no content type", "", validJob, convert.ReasonNotJSON},
		{"broken json", "application/json", "{", convert.ReasonNotJSON},
		{"empty body", "application/json", "", convert.ReasonNotJSON},
		{"missing url", "application/json", `{"folder":"f","uuid":"x"}`, convert.ReasonURLRequired},
		{"missing folder", "application/json", `{"url":"https://example.com","uuid":"x"}`, convert.ReasonFolderRequired},
		{"missing uuid", "application/json", `{"url":"https://example.com","folder":"f"}`, convert.ReasonUUIDRequired},
		{"plain http", "application/json; charset=utf-8", `{"url":"http://example.com","folder":"f","uuid":"x"}`, convert.ReasonInvalidURL},
		{"bad uuid", "application/json", `{"url":"https://example.com","folder":"f","uuid":"x"}`, convert.ReasonInvalidUUID},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			sub := &fakeSubmitter{}
			rec := post(t, NewServer(sub, Config{}, nil), tc.contentType, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, rec.Body.String())
			assert.Empty(t, sub.jobs, "invalid jobs never reach the pool")
		})
	}
}

func TestUploadPoolFull(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSubmitter{err: convert.ErrQueueFull}, Config{}, zap.NewNop())
	rec := post(t, srv, "application/json", validJob)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, MessageBusy, rec.Body.String())
}

func TestUploadSubmitError(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSubmitter{err: errors.New("boom")}, Config{}, zap.NewNop())
	rec := post(t, srv, "application/json", validJob)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUploadBodyLimit(t *testing.T) {
	t.Parallel()

	sub := &fakeSubmitter{}
	srv := NewServer(sub, Config{MaxBodyBytes: 16}, zap.NewNop())
	rec := post(t, srv, "application/json", validJob)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Empty(t, sub.jobs)
}

func TestUploadMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSubmitter{}, Config{}, zap.NewNop())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/upload", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestStaticRoutes(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSubmitter{}, Config{}, zap.NewNop())
	for path, want := range map[string]string{
		"/":        "vts3a",
		"/healthz": "ok",
		"/readyz":  "ready",
	} {
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), want, path)
	}

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")
}

func TestRequestIDPropagation(t *testing.T) {
	t.Parallel()

	srv := NewServer(&fakeSubmitter{}, Config{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	h := recoverMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

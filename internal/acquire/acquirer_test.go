package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
)

const jobUUID = "3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"

type fakeFetcher struct {
	body  string
	err   error
	calls int
}

func (f *fakeFetcher) Download(_ context.Context, _ string, dest string) (int64, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if err := os.WriteFile(dest, []byte(f.body), 0o600); err != nil {
		return 0, err
	}
	return int64(len(f.body)), nil
}

type fakeProber struct {
	audio bool
	err   error
	calls int
}

func (p *fakeProber) HasAudio(context.Context, string) (bool, error) {
	p.calls++
	return p.audio, p.err
}

type fakeTranscoder struct {
	partial bool
	err     error
	calls   int
}

func (t *fakeTranscoder) Transcode(_ context.Context, _ string, output string) error {
	t.calls++
	if t.err != nil {
		if t.partial {
			_ = os.WriteFile(output, []byte("partial"), 0o600)
		}
		return t.err
	}
	return os.WriteFile(output, []byte("mp3"), 0o600)
}

type fakeExtractor struct {
	files    []string
	err      error
	deadline bool
	calls    int
}

func (e *fakeExtractor) Extract(ctx context.Context, req convert.ExtractRequest) error {
	e.calls++
	_, e.deadline = ctx.Deadline()
	for _, name := range e.files {
		if err := os.WriteFile(filepath.Join(req.Dir, name), []byte("x"), 0o600); err != nil {
			return err
		}
	}
	return e.err
}

type fixture struct {
	dir        string
	fetcher    *fakeFetcher
	prober     *fakeProber
	transcoder *fakeTranscoder
	extractor  *fakeExtractor
	acquirer   *Acquirer
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		dir:        t.TempDir(),
		fetcher:    &fakeFetcher{body: "video"},
		prober:     &fakeProber{audio: true},
		transcoder: &fakeTranscoder{},
		extractor:  &fakeExtractor{files: []string{jobUUID + ".mp3"}},
	}
	cfg.WorkDir = f.dir
	f.acquirer = New(cfg, f.fetcher, f.prober, f.transcoder, f.extractor, zap.NewNop())
	return f
}

func (f *fixture) job(url string) convert.Job {
	return convert.Job{URL: url, Folder: "shows", UUID: jobUUID}
}

func (f *fixture) files(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestIsStreaming(t *testing.T) {
	t.Parallel()

	a := New(Config{}, nil, nil, nil, nil, nil)
	assert.True(t, a.IsStreaming("https://www.youtube.com/watch?v=abc"))
	assert.True(t, a.IsStreaming("https://youtu.be/abc"))
	assert.True(t, a.IsStreaming("https://example.com/youtube-rip.mp4"))
	assert.False(t, a.IsStreaming("https://example.com/a.mp4?ref=youtube"))
	assert.False(t, a.IsStreaming("https://cdn.example.com/a.mp4"))
}

func TestAllowedExtension(t *testing.T) {
	t.Parallel()

	a := New(Config{}, nil, nil, nil, nil, nil)
	for _, ok := range []string{
		"https://example.com/a.mp4",
		"https://example.com/dir/a.WEBM",
		"https://example.com/a.opus?sig=1",
	} {
		assert.True(t, a.AllowedExtension(ok), ok)
	}
	for _, bad := range []string{
		"https://example.com/a.mkv",
		"https://example.com/page",
		"https://example.com/a.mp4.html",
		"https://example.com/page?file=a.mp4",
	} {
		assert.False(t, a.AllowedExtension(bad), bad)
	}

	custom := New(Config{AllowedExtensions: []string{".MKV"}}, nil, nil, nil, nil, nil)
	assert.True(t, custom.AllowedExtension("https://example.com/a.mkv"))
	assert.False(t, custom.AllowedExtension("https://example.com/a.mp4"))
}

func TestAcquireGenericSuccess(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	require.NoError(t, f.acquirer.Acquire(context.Background(), f.job("https://example.com/clip.mp4")))

	assert.Equal(t, []string{jobUUID + ".mp3"}, f.files(t))
	assert.Equal(t, 1, f.fetcher.calls)
	assert.Equal(t, 1, f.prober.calls)
	assert.Equal(t, 1, f.transcoder.calls)
	assert.Zero(t, f.extractor.calls)
}

func TestAcquireDisallowedExtensionSkipsFetch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	err := f.acquirer.Acquire(context.Background(), f.job("https://example.com/page.html"))
	require.ErrorIs(t, err, convert.ErrDisallowedExtension)
	assert.Equal(t, KindDisallowedExtension, convert.ErrorKind(err))
	assert.Zero(t, f.fetcher.calls)
	assert.Empty(t, f.files(t))
}

func TestAcquireFetchFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.fetcher.err = errors.New("connection reset")
	err := f.acquirer.Acquire(context.Background(), f.job("https://example.com/clip.mp4"))
	require.Error(t, err)
	assert.Equal(t, KindFetch, convert.ErrorKind(err))
	assert.Zero(t, f.prober.calls)
	assert.Empty(t, f.files(t))
}

func TestAcquireNoAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.prober.audio = false
	err := f.acquirer.Acquire(context.Background(), f.job("https://example.com/clip.mp4"))
	require.ErrorIs(t, err, convert.ErrNoAudio)
	assert.Zero(t, f.transcoder.calls)
	assert.Empty(t, f.files(t))
}

func TestAcquireProbeErrorTreatedAsNoAudio(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.prober.err = errors.New("ffprobe: not found")
	err := f.acquirer.Acquire(context.Background(), f.job("https://example.com/clip.mp4"))
	require.ErrorIs(t, err, convert.ErrNoAudio)
	assert.Empty(t, f.files(t))
}

func TestAcquireTranscodeFailureRemovesPartial(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.transcoder.err = errors.New("exit 1")
	f.transcoder.partial = true
	err := f.acquirer.Acquire(context.Background(), f.job("https://example.com/clip.mp4"))
	require.Error(t, err)
	assert.Equal(t, KindTranscode, convert.ErrorKind(err))
	assert.Empty(t, f.files(t))
}

func TestAcquireStreamingSuccessRemovesLeftovers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{ExtractTimeout: time.Minute})
	f.extractor.files = []string{jobUUID + ".webm", jobUUID + ".mp3", "unrelated.txt"}
	require.NoError(t, f.acquirer.Acquire(context.Background(), f.job("https://youtu.be/abc")))

	assert.ElementsMatch(t, []string{jobUUID + ".mp3", "unrelated.txt"}, f.files(t))
	assert.True(t, f.extractor.deadline)
	assert.Zero(t, f.fetcher.calls)
}

func TestAcquireStreamingIgnoresExtensionAllowList(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	require.NoError(t, f.acquirer.Acquire(context.Background(), f.job("https://www.youtube.com/watch?v=abc")))
	assert.False(t, f.extractor.deadline)
}

func TestAcquireStreamingFailureRemovesEverything(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.extractor.files = []string{jobUUID + ".webm.part", jobUUID + ".mp3"}
	f.extractor.err = errors.New("video unavailable")
	err := f.acquirer.Acquire(context.Background(), f.job("https://youtu.be/abc"))
	require.Error(t, err)
	assert.Equal(t, KindExtract, convert.ErrorKind(err))
	assert.Empty(t, f.files(t))
}

func TestAcquireStreamingWithoutArtifact(t *testing.T) {
	t.Parallel()

	f := newFixture(t, Config{})
	f.extractor.files = []string{jobUUID + ".m4a"}
	err := f.acquirer.Acquire(context.Background(), f.job("https://youtu.be/abc"))
	require.ErrorIs(t, err, convert.ErrArtifactMissing)
	assert.Empty(t, f.files(t))
}

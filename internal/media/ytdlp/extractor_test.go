package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
)

type recordingRunner struct {
	name string
	args []string
	err  error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	r.name = name
	r.args = args
	return command.Result{}, r.err
}

func TestExtractor_ArgsWithoutCookies(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	e := New(Config{CookieFile: filepath.Join(t.TempDir(), "missing.txt")}, runner, zap.NewNop())
	req := convert.ExtractRequest{URL: "https://youtu.be/abc", Dir: "/work", Stem: "id-1"}
	require.NoError(t, e.Extract(context.Background(), req))

	assert.Equal(t, "yt-dlp", runner.name)
	assert.NotContains(t, runner.args, "--cookies")
	assert.Contains(t, runner.args, "/work/id-1.%(ext)s")
	assert.Contains(t, runner.args, "bestaudio/best")
	assert.Contains(t, runner.args, "320K")
	assert.Equal(t, []string{"--", "https://youtu.be/abc"}, runner.args[len(runner.args)-2:])
}

func TestExtractor_ArgsWithCookies(t *testing.T) {
	t.Parallel()

	cookies := filepath.Join(t.TempDir(), "cookies.txt")
	require.NoError(t, os.WriteFile(cookies, []byte("# Netscape HTTP Cookie File\n"), 0o600))

	e := New(Config{Binary: "/bin/yt-dlp", CookieFile: cookies, FFmpegPath: "/bin/ffmpeg"}, &recordingRunner{}, nil)
	args := e.Args(convert.ExtractRequest{URL: "https://youtu.be/abc", Dir: ".", Stem: "x"})
	assert.Contains(t, args, cookies)
	assert.Contains(t, args, "--ffmpeg-location")
}

func TestExtractor_FFmpegLocationOnlyForPaths(t *testing.T) {
	t.Parallel()

	req := convert.ExtractRequest{URL: "https://youtu.be/x", Dir: ".", Stem: "x"}
	for _, name := range []string{"", "ffmpeg", " ffmpeg "} {
		args := New(Config{FFmpegPath: name}, &recordingRunner{}, nil).Args(req)
		assert.NotContains(t, args, "--ffmpeg-location", "ffmpeg path %q", name)
	}
	for _, location := range []string{"/usr/local/bin/ffmpeg", "./bin/ffmpeg", "tools/"} {
		args := New(Config{FFmpegPath: location}, &recordingRunner{}, nil).Args(req)
		assert.Contains(t, args, "--ffmpeg-location", "ffmpeg path %q", location)
		assert.Contains(t, args, location)
	}
}

func TestExtractor_RunnerError(t *testing.T) {
	t.Parallel()

	e := New(Config{}, &recordingRunner{err: errors.New("HTTP Error 403")}, nil)
	err := e.Extract(context.Background(), convert.ExtractRequest{URL: "https://youtu.be/abc", Dir: ".", Stem: "x"})
	require.ErrorContains(t, err, "yt-dlp extract")
}

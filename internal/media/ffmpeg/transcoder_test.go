package ffmpeg

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
)

type recordingRunner struct {
	calls [][]string
	err   error
}

func (r *recordingRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return command.Result{}, r.err
}

func TestTranscoder_DefaultArgs(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{}
	tr := New(Config{}, runner)
	require.NoError(t, tr.Transcode(context.Background(), "in", "in.mp3"))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, []string{
		"ffmpeg", "-hide_banner", "-loglevel", "error", "-y",
		"-i", "in", "-vn", "-ar", "48000", "-ac", "2", "-b:a", "320k", "in.mp3",
	}, runner.calls[0])
}

func TestTranscoder_CustomConfigAndError(t *testing.T) {
	t.Parallel()

	runner := &recordingRunner{err: errors.New("exit status 1")}
	tr := New(Config{Binary: "/opt/ffmpeg", SampleRate: 44100, Channels: 1, Bitrate: "192k"}, runner)
	err := tr.Transcode(context.Background(), "a", "b")
	require.ErrorContains(t, err, "ffmpeg transcode")
	assert.Equal(t, "/opt/ffmpeg", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "44100")
	assert.Contains(t, runner.calls[0], "192k")
}

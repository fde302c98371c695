package ffprobe

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
)

type fakeRunner struct {
	name   string
	args   []string
	result command.Result
	err    error
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (command.Result, error) {
	f.name = name
	f.args = args
	return f.result, f.err
}

func TestProber_HasAudio(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: command.Result{Stdout: `{
		"streams": [
			{"index": 0, "codec_type": "video", "codec_name": "h264"},
			{"index": 1, "codec_type": "audio", "codec_name": "aac", "sample_rate": "44100", "channels": 2}
		],
		"format": {"filename": "raw", "nb_streams": 2, "format_name": "mov,mp4"}
	}`}}
	p := New("/usr/bin/ffprobe", runner)

	ok, err := p.HasAudio(context.Background(), "/tmp/raw")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/usr/bin/ffprobe", runner.name)
	assert.Equal(t, "/tmp/raw", runner.args[len(runner.args)-1])
	assert.Contains(t, runner.args, "-show_streams")
}

func TestProber_NoAudio(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{result: command.Result{Stdout: `{"streams":[{"codec_type":"video"}],"format":{}}`}}
	ok, err := New("", runner).HasAudio(context.Background(), "clip")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "ffprobe", runner.name)
}

func TestProber_Errors(t *testing.T) {
	t.Parallel()

	_, err := New("", &fakeRunner{err: errors.New("exit 1")}).HasAudio(context.Background(), "clip")
	require.Error(t, err)

	_, err = New("", &fakeRunner{result: command.Result{Stdout: "garbage"}}).HasAudio(context.Background(), "clip")
	require.ErrorContains(t, err, "ffprobe parse")

	_, err = New("", &fakeRunner{}).Inspect(context.Background(), " ")
	require.ErrorContains(t, err, "empty path")
}

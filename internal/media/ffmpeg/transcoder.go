// Package ffmpeg re-encodes media into the fixed delivery audio format.
package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
)

// Output format defaults.
const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
	DefaultBitrate    = "320k"
)

// Config controls the encoder invocation.
type Config struct {
	Binary     string
	SampleRate int
	Channels   int
	Bitrate    string
}

// Transcoder implements convert.Transcoder.
type Transcoder struct {
	cfg    Config
	runner command.Runner
}

// New returns a Transcoder with defaults applied to unset fields.
func New(cfg Config, runner command.Runner) *Transcoder {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if strings.TrimSpace(cfg.Bitrate) == "" {
		cfg.Bitrate = DefaultBitrate
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	return &Transcoder{cfg: cfg, runner: runner}
}

// Args returns the ffmpeg arguments used to encode input into output.
// Video streams are dropped.
func (t *Transcoder) Args(input, output string) []string {
	return []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-i", input,
		"-vn",
		"-ar", strconv.Itoa(t.cfg.SampleRate),
		"-ac", strconv.Itoa(t.cfg.Channels),
		"-b:a", t.cfg.Bitrate,
		output,
	}
}

// Transcode runs ffmpeg and waits for it to finish.
func (t *Transcoder) Transcode(ctx context.Context, input string, output string) error {
	if _, err := t.runner.Run(ctx, t.cfg.Binary, t.Args(input, output)...); err != nil {
		return fmt.Errorf("ffmpeg transcode: %w", err)
	}
	return nil
}

// Package ytdlp drives the yt-dlp media extractor for streaming-platform sources.
package ytdlp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
)

// DefaultAudioQuality is the forced re-encode bitrate.
const DefaultAudioQuality = "320K"

// Config controls the extractor invocation.
type Config struct {
	Binary       string
	FFmpegPath   string
	AudioQuality string
	// CookieFile is optional; it is only passed when the file exists.
	CookieFile string
}

// Extractor implements convert.Extractor.
type Extractor struct {
	cfg    Config
	runner command.Runner
	logger *zap.Logger
}

// New returns an Extractor.
func New(cfg Config, runner command.Runner, logger *zap.Logger) *Extractor {
	if strings.TrimSpace(cfg.Binary) == "" {
		cfg.Binary = "yt-dlp"
	}
	if strings.TrimSpace(cfg.AudioQuality) == "" {
		cfg.AudioQuality = DefaultAudioQuality
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CookieFile != "" && !fileExists(cfg.CookieFile) {
		logger.Warn("cookie file not found; extracting without cookies", zap.String("cookie_file", cfg.CookieFile))
	}
	return &Extractor{cfg: cfg, runner: runner, logger: logger}
}

// Args builds the yt-dlp arguments for request.
func (e *Extractor) Args(request convert.ExtractRequest) []string {
	args := []string{
		"--quiet", "--no-warnings", "--no-playlist",
		"--format", "bestaudio/best",
		"--output", filepath.Join(request.Dir, request.Stem+".%(ext)s"),
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", e.cfg.AudioQuality,
	}
	if isPath(e.cfg.FFmpegPath) {
		args = append(args, "--ffmpeg-location", e.cfg.FFmpegPath)
	}
	if e.cfg.CookieFile != "" && fileExists(e.cfg.CookieFile) {
		args = append(args, "--cookies", e.cfg.CookieFile)
	}
	return append(args, "--", request.URL)
}

// Extract runs yt-dlp and waits for post-processing to complete.
func (e *Extractor) Extract(ctx context.Context, request convert.ExtractRequest) error {
	if _, err := e.runner.Run(ctx, e.cfg.Binary, e.Args(request)...); err != nil {
		return fmt.Errorf("yt-dlp extract: %w", err)
	}
	return nil
}

// isPath reports whether location names a file or directory rather than a bare
// program name. yt-dlp only accepts paths for --ffmpeg-location and drops
// ffmpeg entirely when given a name it cannot stat; bare names are found on PATH.
func isPath(location string) bool {
	location = strings.TrimSpace(location)
	if location == "" {
		return false
	}
	return strings.ContainsRune(location, '/') || strings.ContainsRune(location, filepath.Separator)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

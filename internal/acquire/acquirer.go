// Package acquire turns a validated job into a local {uuid}.mp3 artifact,
// choosing between the streaming extractor and a generic fetch-then-transcode path.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
)

// DefaultStreamingMarker identifies streaming-platform URLs (youtube.com, youtu.be).
const DefaultStreamingMarker = "youtu"

// DefaultAllowedExtensions are containers and codecs that commonly carry audio.
var DefaultAllowedExtensions = []string{
	"mp4", "webm", "mov", "mp3", "aac", "flac", "wav", "m4a", "ogg", "wma", "opus",
}

// Failure kinds reported through convert.StageError.
const (
	KindDisallowedExtension = "disallowed_extension"
	KindFetch               = "fetch"
	KindNoAudio             = "no_audio"
	KindTranscode           = "transcode"
	KindExtract             = "extract"
)

// Config controls the acquisition strategies.
type Config struct {
	WorkDir           string
	StreamingMarker   string
	AllowedExtensions []string
	// Zero timeouts leave the corresponding external call unbounded.
	FetchTimeout     time.Duration
	ProbeTimeout     time.Duration
	TranscodeTimeout time.Duration
	ExtractTimeout   time.Duration
}

// Acquirer implements convert.Acquirer.
type Acquirer struct {
	cfg        Config
	allowed    map[string]struct{}
	fetcher    convert.Fetcher
	prober     convert.Prober
	transcoder convert.Transcoder
	extractor  convert.Extractor
	logger     *zap.Logger
}

// New constructs an Acquirer. The collaborators are shared across jobs and
// must be safe for concurrent use.
func New(
	cfg Config,
	fetcher convert.Fetcher,
	prober convert.Prober,
	transcoder convert.Transcoder,
	extractor convert.Extractor,
	logger *zap.Logger,
) *Acquirer {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if cfg.StreamingMarker == "" {
		cfg.StreamingMarker = DefaultStreamingMarker
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{
		cfg:        cfg,
		allowed:    allowed,
		fetcher:    fetcher,
		prober:     prober,
		transcoder: transcoder,
		extractor:  extractor,
		logger:     logger,
	}
}

// IsStreaming reports whether the URL's host or path carries the streaming marker.
func (a *Acquirer) IsStreaming(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.Contains(strings.ToLower(u.Host+u.Path), strings.ToLower(a.cfg.StreamingMarker))
}

// AllowedExtension reports whether the URL path ends in an allow-listed extension.
func (a *Acquirer) AllowedExtension(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	if ext == "" {
		return false
	}
	_, ok := a.allowed[ext]
	return ok
}

// Acquire produces {workdir}/{uuid}.mp3. On failure no such file is left behind
// and a *convert.StageError describes what went wrong.
func (a *Acquirer) Acquire(ctx context.Context, job convert.Job) error {
	logger := a.logger.With(zap.String("uuid", job.UUID), zap.String("url", job.URL))
	if a.IsStreaming(job.URL) {
		logger.Debug("acquiring via extractor")
		return a.extract(ctx, job, logger)
	}
	logger.Debug("acquiring via generic fetch")
	return a.fetchAndTranscode(ctx, job, logger)
}

func (a *Acquirer) extract(ctx context.Context, job convert.Job, logger *zap.Logger) error {
	audio := a.artifactPath(job.AudioArtifact())

	extractCtx, cancel := withTimeout(ctx, a.cfg.ExtractTimeout)
	defer cancel()
	start := time.Now()
	err := a.extractor.Extract(extractCtx, convert.ExtractRequest{
		URL:  job.URL,
		Dir:  a.cfg.WorkDir,
		Stem: job.UUID,
	})
	metrics.ObserveTool("extract", err, time.Since(start))

	if err == nil && !exists(audio) {
		err = fmt.Errorf("extractor produced no %s: %w", job.AudioArtifact(), convert.ErrArtifactMissing)
	}
	if err != nil {
		a.removeByStem(job.UUID, "", logger)
		return convert.NewStageError(convert.StageAcquire, KindExtract, err)
	}
	// Intermediate downloads and .part files share the stem.
	a.removeByStem(job.UUID, convert.AudioExtension, logger)
	return nil
}

func (a *Acquirer) fetchAndTranscode(ctx context.Context, job convert.Job, logger *zap.Logger) error {
	if !a.AllowedExtension(job.URL) {
		return convert.NewStageError(convert.StageAcquire, KindDisallowedExtension, convert.ErrDisallowedExtension)
	}

	raw := a.artifactPath(job.RawArtifact())
	audio := a.artifactPath(job.AudioArtifact())
	defer a.remove(raw, logger)

	fetchCtx, cancel := withTimeout(ctx, a.cfg.FetchTimeout)
	start := time.Now()
	size, err := a.fetcher.Download(fetchCtx, job.URL, raw)
	cancel()
	metrics.ObserveTool("fetch", err, time.Since(start))
	if err != nil {
		return convert.NewStageError(convert.StageAcquire, KindFetch, err)
	}
	logger.Debug("source fetched", zap.Int64("bytes", size))

	if !a.hasAudio(ctx, raw, logger) {
		return convert.NewStageError(convert.StageAcquire, KindNoAudio, convert.ErrNoAudio)
	}

	transcodeCtx, cancel := withTimeout(ctx, a.cfg.TranscodeTimeout)
	start = time.Now()
	err = a.transcoder.Transcode(transcodeCtx, raw, audio)
	cancel()
	metrics.ObserveTool("transcode", err, time.Since(start))
	if err != nil {
		a.remove(audio, logger)
		return convert.NewStageError(convert.StageAcquire, KindTranscode, err)
	}
	return nil
}

// hasAudio treats probe failures as "no audio".
func (a *Acquirer) hasAudio(ctx context.Context, raw string, logger *zap.Logger) bool {
	probeCtx, cancel := withTimeout(ctx, a.cfg.ProbeTimeout)
	defer cancel()
	start := time.Now()
	ok, err := a.prober.HasAudio(probeCtx, raw)
	metrics.ObserveTool("probe", err, time.Since(start))
	if err != nil {
		logger.Warn("probe failed; treating source as silent", zap.Error(err))
		return false
	}
	return ok
}

func (a *Acquirer) artifactPath(name string) string {
	return filepath.Join(a.cfg.WorkDir, name)
}

func (a *Acquirer) remove(p string, logger *zap.Logger) {
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("artifact cleanup failed", zap.String("path", p), zap.Error(err))
	}
}

// removeByStem deletes {stem}.* in the work dir, sparing names ending in keep.
func (a *Acquirer) removeByStem(stem, keep string, logger *zap.Logger) {
	matches, err := filepath.Glob(filepath.Join(a.cfg.WorkDir, escapeGlob(stem)+".*"))
	if err != nil {
		logger.Warn("artifact glob failed", zap.Error(err))
		return
	}
	for _, m := range matches {
		if keep != "" && filepath.Base(m) == stem+keep {
			continue
		}
		a.remove(m, logger)
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func exists(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func escapeGlob(s string) string {
	replacer := strings.NewReplacer(`*`, `\*`, `?`, `\?`, `[`, `\[`, `\`, `\\`)
	return replacer.Replace(s)
}

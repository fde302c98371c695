// Package worker runs one conversion job end to end: acquire, upload, clean up.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// WorkDir holds the per-job {uuid} and {uuid}.mp3 artifacts.
	WorkDir string
}

// Worker implements convert.Processor. It holds no per-job state and may be
// shared across goroutines.
type Worker struct {
	acquirer convert.Acquirer
	uploader convert.Uploader
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Worker.
func New(acquirer convert.Acquirer, uploader convert.Uploader, cfg Config, logger *zap.Logger) *Worker {
	if cfg.WorkDir == "" {
		cfg.WorkDir = "."
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		acquirer: acquirer,
		uploader: uploader,
		cfg:      cfg,
		logger:   logger,
	}
}

// Process acquires the job's audio, attempts the upload whether or not
// acquisition succeeded, and always removes local artifacts. Failures are
// logged and reported in the Result; Process never panics outward.
func (w *Worker) Process(ctx context.Context, job convert.Job) (res convert.Result) {
	start := time.Now()
	res.Job = job
	logger := w.logger.With(
		zap.String("uuid", job.UUID),
		zap.String("folder", job.Folder),
		zap.String("url", job.URL),
	)

	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic: %v", r)
			logger.Error("job panicked", zap.Any("panic", r), zap.Stack("stack"))
			if res.Acquired {
				res.UploadErr, res.Uploaded = err, false
			} else if res.AcquireErr == nil {
				res.AcquireErr = err
			}
		}
		w.cleanup(job, logger)
		metrics.ObserveJob(res.Outcome(), time.Since(start))
		logger.Info("job finished",
			zap.String("outcome", res.Outcome()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}()

	logger.Info("job started")
	if err := w.acquirer.Acquire(ctx, job); err != nil {
		res.AcquireErr = err
		logger.Warn("acquisition failed", zap.String("kind", convert.ErrorKind(err)), zap.Error(err))
	} else {
		res.Acquired = true
	}

	url, err := w.uploader.Upload(ctx, job.Folder, w.artifactPath(job.AudioArtifact()))
	if err != nil {
		res.UploadErr = err
		logger.Warn("upload failed", zap.String("kind", convert.ErrorKind(err)), zap.Error(err))
		return res
	}
	res.Uploaded = true
	res.PublicURL = url
	return res
}

func (w *Worker) artifactPath(name string) string {
	return filepath.Join(w.cfg.WorkDir, name)
}

// cleanup is best effort; failures are logged as cleanup-stage errors.
func (w *Worker) cleanup(job convert.Job, logger *zap.Logger) {
	for _, name := range []string{job.AudioArtifact(), job.RawArtifact()} {
		p := w.artifactPath(name)
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			cerr := convert.NewStageError(convert.StageCleanup, "remove", err)
			logger.Warn("cleanup failed", zap.String("path", p), zap.Error(cerr))
		}
	}
}

// Package upload pushes a produced audio artifact to the configured blob store
// and derives its public URL.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/metrics"
)

// ContentType is sent with every uploaded object.
const ContentType = "audio/mpeg"

// Failure kinds reported through convert.StageError.
const (
	KindMissingArtifact = "missing_artifact"
	KindPut             = "put"
)

// Config controls where objects are published.
type Config struct {
	// PublicBaseURL prefixes the object key in the logged public URL.
	PublicBaseURL string
	Timeout       time.Duration
}

// Uploader implements convert.Uploader.
type Uploader struct {
	cfg    Config
	store  convert.BlobStore
	logger *zap.Logger
}

// New constructs an Uploader.
func New(cfg Config, store convert.BlobStore, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{cfg: cfg, store: store, logger: logger}
}

// PublicURL joins the configured base URL and an object key.
func (u *Uploader) PublicURL(key string) string {
	if u.cfg.PublicBaseURL == "" {
		return ""
	}
	return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + key
}

// Upload stores path under {folder}/{basename} and returns the public URL,
// or the store's URI when no public base is configured.
func (u *Uploader) Upload(ctx context.Context, folder, path string) (string, error) {
	// #nosec G304 -- path is a worker-owned artifact in the work dir.
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%s: %w", filepath.Base(path), convert.ErrArtifactMissing)
		}
		return "", convert.NewStageError(convert.StageUpload, KindMissingArtifact, err)
	}
	defer func() {
		_ = f.Close()
	}()

	var size int64 = -1
	if info, statErr := f.Stat(); statErr == nil {
		size = info.Size()
	}

	key := convert.ObjectKey(folder, filepath.Base(path))
	if u.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	uri, err := u.store.PutObject(ctx, key, ContentType, f)
	metrics.ObserveTool("upload", err, time.Since(start))
	if err != nil {
		return "", convert.NewStageError(convert.StageUpload, KindPut, err)
	}
	metrics.AddUploadBytes(size)

	public := u.PublicURL(key)
	if public == "" {
		public = uri
	}
	u.logger.Info("file uploaded",
		zap.String("key", key),
		zap.String("uri", uri),
		zap.String("url", public),
		zap.Int64("bytes", size),
	)
	return public, nil
}

// Package server builds the vts3a dependency graph and runs it in queue or HTTP mode.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/acquire"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/api"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/command"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/config"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/consumer"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/convert"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/dispatcher"
	collyfetcher "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/fetcher/colly"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/media/ffmpeg"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/media/ffprobe"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/media/ytdlp"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/queue"
	queueMemory "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/queue/memory"
	gcsstorage "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/storage/gcs"
	localstorage "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/storage/local"
	memoryStorage "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/storage/memory"
	s3storage "github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/storage/s3"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/upload"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/worker"
)

const shutdownTimeout = 10 * time.Second

// App contains the application's dependencies.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	blobStore convert.BlobStore
	gcsClient *storage.Client
	worker    *worker.Worker

	// Queue mode.
	source   queue.Source
	consumer *consumer.Consumer

	// HTTP mode.
	queue     *queueMemory.Queue
	dispatch  *dispatcher.Dispatcher
	apiServer *api.Server
}

// Option overrides a dependency that Build would otherwise construct.
type Option func(*App)

// WithBlobStore replaces the configured storage backend.
func WithBlobStore(store convert.BlobStore) Option {
	return func(a *App) { a.blobStore = store }
}

// WithSource replaces the configured queue broker.
func WithSource(src queue.Source) Option {
	return func(a *App) { a.source = src }
}

// Build creates the application's dependencies for cfg.Mode.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(app)
	}
	logger.Info("building application dependencies",
		zap.String("env", cfg.Env),
		zap.String("mode", cfg.Mode),
		zap.String("storage", cfg.Storage.Backend),
	)

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	if app.blobStore == nil {
		if err := app.setupStorage(ctx); err != nil {
			return nil, err
		}
	}
	app.worker = app.setupWorker()

	switch cfg.Mode {
	case config.ModeQueue:
		if err := app.setupConsumer(ctx); err != nil {
			app.closeInfrastructure()
			return nil, err
		}
	case config.ModeHTTP:
		app.setupHTTP()
	default:
		return nil, fmt.Errorf("unsupported mode %q", cfg.Mode)
	}
	return app, nil
}

func (a *App) setupStorage(ctx context.Context) error {
	st := a.cfg.Storage
	var err error
	switch st.Backend {
	case config.StorageS3:
		s3Cfg := s3storage.Config{
			Endpoint:        st.Endpoint,
			Region:          st.Region,
			Bucket:          st.Bucket,
			AccessKeyID:     st.AccessKeyID,
			SecretAccessKey: st.SecretAccessKey,
			UseSSL:          st.UseSSL,
		}
		client, clientErr := s3storage.NewClient(s3Cfg)
		if clientErr != nil {
			return fmt.Errorf("s3 client init failed: %w", clientErr)
		}
		a.blobStore, err = s3storage.New(client, s3Cfg)
		if err != nil {
			return fmt.Errorf("s3 blob store init failed: %w", err)
		}
	case config.StorageGCS:
		a.gcsClient, err = storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.blobStore, err = gcsstorage.New(a.gcsClient, gcsstorage.Config{Bucket: st.Bucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
	case config.StorageLocal:
		a.blobStore, err = localstorage.New(localstorage.Config{BaseDir: st.LocalDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
	case config.StorageMemory:
		a.blobStore = memoryStorage.NewBlobStore()
	default:
		return fmt.Errorf("unsupported storage backend %q", st.Backend)
	}
	a.logger.Info("storage backend ready", zap.String("backend", st.Backend), zap.String("bucket", st.Bucket))
	return nil
}

func (a *App) setupWorker() *worker.Worker {
	media := a.cfg.Media
	timeouts := a.cfg.Timeouts
	runner := command.NewExecRunner()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    media.UserAgent,
		Timeout:      timeouts.Fetch(),
		MaxBodyBytes: media.MaxDownloadBytes,
	})
	prober := ffprobe.New(media.FFprobePath, runner)
	transcoder := ffmpeg.New(ffmpeg.Config{
		Binary:     media.FFmpegPath,
		SampleRate: media.SampleRate,
		Channels:   media.Channels,
		Bitrate:    media.Bitrate,
	}, runner)
	extractor := ytdlp.New(ytdlp.Config{
		Binary:       media.YtDlpPath,
		FFmpegPath:   media.FFmpegPath,
		AudioQuality: media.AudioQuality,
		CookieFile:   media.CookieFile,
	}, runner, a.logger.Named("ytdlp"))

	acquirer := acquire.New(acquire.Config{
		WorkDir:           a.cfg.WorkDir,
		StreamingMarker:   media.StreamingMarker,
		AllowedExtensions: media.AllowedExtensions,
		FetchTimeout:      timeouts.Fetch(),
		ProbeTimeout:      timeouts.Probe(),
		TranscodeTimeout:  timeouts.Transcode(),
		ExtractTimeout:    timeouts.Extract(),
	}, fetcher, prober, transcoder, extractor, a.logger.Named("acquire"))

	uploader := upload.New(upload.Config{
		PublicBaseURL: a.cfg.Storage.PublicBaseURL,
		Timeout:       timeouts.Upload(),
	}, a.blobStore, a.logger.Named("upload"))

	return worker.New(acquirer, uploader, worker.Config{WorkDir: a.cfg.WorkDir}, a.logger.Named("worker"))
}

func (a *App) setupConsumer(ctx context.Context) error {
	if a.source == nil {
		broker := a.cfg.Broker
		switch broker.Kind {
		case config.BrokerRabbitMQ:
			src, err := queue.DialAMQP(queue.AMQPConfig{
				Host:     broker.RabbitMQ.Host,
				Port:     broker.RabbitMQ.Port,
				User:     broker.RabbitMQ.User,
				Password: broker.RabbitMQ.Password,
				VHost:    broker.RabbitMQ.VHost,
				Queue:    broker.RabbitMQ.Queue,
				Prefetch: broker.RabbitMQ.Prefetch,
			}, a.logger.Named("amqp"))
			if err != nil {
				return fmt.Errorf("rabbitmq init failed: %w", err)
			}
			a.source = src
		case config.BrokerPubSub:
			src, err := queue.DialPubSub(ctx, broker.PubSub.ProjectID, broker.PubSub.Subscription, a.logger.Named("pubsub"))
			if err != nil {
				return fmt.Errorf("pubsub init failed: %w", err)
			}
			a.source = src
		default:
			return fmt.Errorf("unsupported broker %q", broker.Kind)
		}
	}
	a.consumer = consumer.New(a.source, a.worker, consumer.AlwaysAck{}, a.logger.Named("consumer"))
	return nil
}

func (a *App) setupHTTP() {
	pool := a.cfg.Pool
	a.queue = queueMemory.NewQueue(pool.QueueDepth)
	workers := make([]convert.Processor, pool.Workers)
	for i := range workers {
		workers[i] = a.worker
	}
	a.dispatch = dispatcher.New(a.queue, workers, a.logger.Named("dispatcher"))
	a.apiServer = api.NewServer(a.dispatch, api.Config{
		MaxBodyBytes:   a.cfg.Server.MaxBodyBytes,
		RequestTimeout: time.Duration(a.cfg.Server.RequestTimeoutSeconds) * time.Second,
	}, a.logger.Named("api"))
}

// Handler exposes the HTTP surface. It is nil outside HTTP mode.
func (a *App) Handler() http.Handler {
	if a.apiServer == nil {
		return nil
	}
	return a.apiServer.Handler()
}

// Run starts the configured mode and blocks until SIGINT, SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.logger.Info("application started", zap.String("mode", a.cfg.Mode))
	var err error
	if a.cfg.Mode == config.ModeHTTP {
		err = a.runHTTP(ctx, stop)
	} else {
		err = a.runQueue(ctx)
	}
	if closeErr := a.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (a *App) runQueue(ctx context.Context) error {
	if err := a.consumer.Run(ctx); err != nil {
		return fmt.Errorf("consumer stopped: %w", err)
	}
	return nil
}

func (a *App) runHTTP(ctx context.Context, stop context.CancelFunc) error {
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		a.logger.Info("dispatcher started", zap.Int("workers", a.cfg.Pool.Workers))
		a.dispatch.Run(ctx)
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	// Accepted jobs are finished before the process exits.
	<-dispatchDone

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return nil
	}
}

// Close releases clients held by the application.
func (a *App) Close() error {
	if a.queue != nil {
		a.queue.Close()
	}
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	// The consumer closes its source once it has started.
	if a.source != nil && (a.consumer == nil || a.consumer.State() == consumer.StateIdle) {
		if err := a.source.Close(); err != nil {
			a.logger.Warn("queue source close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
		a.gcsClient = nil
	}
}

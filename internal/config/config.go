// Package config loads and validates vts3a configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Execution modes.
const (
	ModeQueue = "queue"
	ModeHTTP  = "http"
)

// Broker kinds for queue mode.
const (
	BrokerRabbitMQ = "rabbitmq"
	BrokerPubSub   = "pubsub"
)

// Storage backends.
const (
	StorageS3     = "s3"
	StorageGCS    = "gcs"
	StorageLocal  = "local"
	StorageMemory = "memory"
)

// DefaultMaxDownloadBytes caps a generic fetch. The collector buffers the whole
// body in memory, so the cap bounds per-worker memory use.
const DefaultMaxDownloadBytes = 2 << 30

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Env      string        `mapstructure:"env"`
	Mode     string        `mapstructure:"mode"`
	WorkDir  string        `mapstructure:"work_dir"`
	Server   ServerConfig  `mapstructure:"server"`
	Broker   BrokerConfig  `mapstructure:"broker"`
	Storage  StorageConfig `mapstructure:"storage"`
	Media    MediaConfig   `mapstructure:"media"`
	Timeouts TimeoutConfig `mapstructure:"timeouts"`
	Pool     PoolConfig    `mapstructure:"pool"`
	Logging  LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int   `mapstructure:"port"`
	MaxBodyBytes          int64 `mapstructure:"max_body_bytes"`
	RequestTimeoutSeconds int   `mapstructure:"request_timeout_seconds"`
}

// BrokerConfig selects and configures the queue-mode message source.
type BrokerConfig struct {
	Kind     string         `mapstructure:"kind"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// RabbitMQConfig holds AMQP connection settings.
type RabbitMQConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Queue    string `mapstructure:"queue"`
	Prefetch int    `mapstructure:"prefetch"`
}

// PubSubConfig identifies the subscription consumed in Pub/Sub mode.
type PubSubConfig struct {
	ProjectID    string `mapstructure:"project_id"`
	Subscription string `mapstructure:"subscription"`
}

// StorageConfig selects the object store and its public URL base.
type StorageConfig struct {
	Backend         string `mapstructure:"backend"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
	LocalDir        string `mapstructure:"local_dir"`
}

// MediaConfig configures acquisition and the external tools.
type MediaConfig struct {
	StreamingMarker   string   `mapstructure:"streaming_marker"`
	AllowedExtensions []string `mapstructure:"allowed_extensions"`
	UserAgent         string   `mapstructure:"user_agent"`
	MaxDownloadBytes  int      `mapstructure:"max_download_bytes"`
	YtDlpPath         string   `mapstructure:"ytdlp_path"`
	FFmpegPath        string   `mapstructure:"ffmpeg_path"`
	FFprobePath       string   `mapstructure:"ffprobe_path"`
	AudioQuality      string   `mapstructure:"audio_quality"`
	CookieFile        string   `mapstructure:"cookie_file"`
	SampleRate        int      `mapstructure:"sample_rate"`
	Channels          int      `mapstructure:"channels"`
	Bitrate           string   `mapstructure:"bitrate"`
}

// TimeoutConfig bounds each external call. Zero disables the bound.
type TimeoutConfig struct {
	FetchSeconds     int `mapstructure:"fetch_seconds"`
	ProbeSeconds     int `mapstructure:"probe_seconds"`
	TranscodeSeconds int `mapstructure:"transcode_seconds"`
	ExtractSeconds   int `mapstructure:"extract_seconds"`
	UploadSeconds    int `mapstructure:"upload_seconds"`
}

// PoolConfig sizes the HTTP-mode worker pool.
type PoolConfig struct {
	Workers    int `mapstructure:"workers"`
	QueueDepth int `mapstructure:"queue_depth"`
}

// LoggingConfig toggles zap development features and file rotation.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	File        string `mapstructure:"file"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	MaxBackups  int    `mapstructure:"max_backups"`
	MaxAgeDays  int    `mapstructure:"max_age_days"`
	Compress    bool   `mapstructure:"compress"`
}

// legacyEnv maps config keys to the environment names used by existing deployments.
var legacyEnv = map[string]string{
	"env":                       "ENV",
	"mode":                      "MODE",
	"storage.access_key_id":     "AWS_ACCESS_KEY_ID",
	"storage.secret_access_key": "AWS_SECRET_ACCESS_KEY",
	"storage.region":            "AWS_REGION",
	"storage.bucket":            "AWS_S3_BUCKET_NAME",
	"storage.public_base_url":   "AWS_S3_STATIC_PAGE_URL",
	"broker.rabbitmq.host":      "RABBITMQ_HOST",
	"broker.rabbitmq.port":      "RABBITMQ_PORT",
	"broker.rabbitmq.user":      "RABBITMQ_USER",
	"broker.rabbitmq.password":  "RABBITMQ_PASSWORD",
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VTS3A")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	for key, legacy := range legacyEnv {
		// Prefixed names take precedence over legacy ones.
		prefixed := "VTS3A_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", legacy, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	v.SetDefault("logging.development", !IsProduction(v.GetString("env")))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("mode", ModeQueue)
	v.SetDefault("work_dir", ".")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("broker.kind", BrokerRabbitMQ)
	v.SetDefault("broker.rabbitmq.host", "localhost")
	v.SetDefault("broker.rabbitmq.port", 5672)
	v.SetDefault("broker.rabbitmq.user", "guest")
	v.SetDefault("broker.rabbitmq.password", "guest")
	v.SetDefault("broker.rabbitmq.vhost", "/")
	v.SetDefault("broker.rabbitmq.queue", "vts3a_convert_queue")
	v.SetDefault("broker.rabbitmq.prefetch", 1)
	v.SetDefault("broker.pubsub.project_id", "")
	v.SetDefault("broker.pubsub.subscription", "")
	v.SetDefault("storage.backend", StorageS3)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.local_dir", "./uploads")
	v.SetDefault("media.streaming_marker", "youtu")
	v.SetDefault("media.allowed_extensions", []string{
		"mp4", "webm", "mov", "mp3", "aac", "flac", "wav", "m4a", "ogg", "wma", "opus",
	})
	v.SetDefault("media.user_agent", "vts3a/1.0")
	v.SetDefault("media.max_download_bytes", DefaultMaxDownloadBytes)
	v.SetDefault("media.ytdlp_path", "yt-dlp")
	v.SetDefault("media.ffmpeg_path", "ffmpeg")
	v.SetDefault("media.ffprobe_path", "ffprobe")
	v.SetDefault("media.audio_quality", "320K")
	v.SetDefault("media.cookie_file", "")
	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.channels", 2)
	v.SetDefault("media.bitrate", "320k")
	v.SetDefault("timeouts.fetch_seconds", 600)
	v.SetDefault("timeouts.probe_seconds", 60)
	v.SetDefault("timeouts.transcode_seconds", 1800)
	v.SetDefault("timeouts.extract_seconds", 1800)
	v.SetDefault("timeouts.upload_seconds", 600)
	v.SetDefault("pool.workers", 4)
	v.SetDefault("pool.queue_depth", 64)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", true)
}

// IsProduction reports whether env names the production deployment.
func IsProduction(env string) bool {
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

// Validate enforces required values and reasonable limits.
//
//nolint:gocyclo // flat list of independent checks
func (c Config) Validate() error {
	switch c.Mode {
	case ModeQueue:
		if err := c.Broker.validate(); err != nil {
			return err
		}
	case ModeHTTP:
		if c.Server.Port <= 0 {
			return fmt.Errorf("server.port must be > 0")
		}
		if c.Pool.Workers <= 0 {
			return fmt.Errorf("pool.workers must be > 0")
		}
		if c.Pool.QueueDepth < 0 {
			return fmt.Errorf("pool.queue_depth must be >= 0")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeQueue, ModeHTTP, c.Mode)
	}

	switch c.Storage.Backend {
	case StorageS3, StorageGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required for the %s backend", c.Storage.Backend)
		}
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir is required for the local backend")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}

	if c.Timeouts.FetchSeconds < 0 || c.Timeouts.ProbeSeconds < 0 || c.Timeouts.TranscodeSeconds < 0 ||
		c.Timeouts.ExtractSeconds < 0 || c.Timeouts.UploadSeconds < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.Media.MaxDownloadBytes < 0 {
		return fmt.Errorf("media.max_download_bytes must be >= 0")
	}
	return nil
}

func (b BrokerConfig) validate() error {
	switch b.Kind {
	case BrokerRabbitMQ:
		if b.RabbitMQ.Host == "" {
			return fmt.Errorf("broker.rabbitmq.host is required")
		}
		if b.RabbitMQ.Port <= 0 || b.RabbitMQ.Port > 65535 {
			return fmt.Errorf("broker.rabbitmq.port must be in 1..65535")
		}
		if b.RabbitMQ.Queue == "" {
			return fmt.Errorf("broker.rabbitmq.queue is required")
		}
		// One unacknowledged delivery per consumer; more would sit idle in this
		// worker's buffer while other consumers starve.
		if b.RabbitMQ.Prefetch != 1 {
			return fmt.Errorf("broker.rabbitmq.prefetch must be 1, got %d", b.RabbitMQ.Prefetch)
		}
	case BrokerPubSub:
		if b.PubSub.ProjectID == "" || b.PubSub.Subscription == "" {
			return fmt.Errorf("broker.pubsub.project_id and broker.pubsub.subscription are required")
		}
	default:
		return fmt.Errorf("broker.kind %q is not supported", b.Kind)
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Fetch returns the generic-fetch timeout.
func (t TimeoutConfig) Fetch() time.Duration { return seconds(t.FetchSeconds) }

// Probe returns the ffprobe timeout.
func (t TimeoutConfig) Probe() time.Duration { return seconds(t.ProbeSeconds) }

// Transcode returns the ffmpeg timeout.
func (t TimeoutConfig) Transcode() time.Duration { return seconds(t.TranscodeSeconds) }

// Extract returns the yt-dlp timeout.
func (t TimeoutConfig) Extract() time.Duration { return seconds(t.ExtractSeconds) }

// Upload returns the object store put timeout.
func (t TimeoutConfig) Upload() time.Duration { return seconds(t.UploadSeconds) }

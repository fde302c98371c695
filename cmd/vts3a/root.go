package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/config"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/logging"
	"github.com/Frederic94500/PRLive-Video-to-S3Audio/internal/server"
)

// runner is what the commands need from the built application.
type runner interface {
	Run(ctx context.Context) error
}

// buildApp is a variable so tests can replace the application factory.
var buildApp = func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (runner, error) {
	return server.Build(ctx, cfg, logger)
}

type cli struct {
	configFile string
	envDir     string
	cfg        config.Config
	logger     *zap.Logger
}

// newRootCmd creates the root command and its mode subcommands.
func newRootCmd() *cobra.Command {
	c := &cli{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:   "vts3a",
		Short: "Convert media URLs to MP3 and publish them to object storage",
		Long: `vts3a downloads or extracts the audio track of a media URL, encodes it as
MP3 and uploads it to {folder}/{uuid}.mp3 in the configured bucket.

Without a subcommand the mode comes from configuration (VTS3A_MODE or MODE).`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), "")
		},
	}
	cmd.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&c.envDir, "env-dir", ".", "directory holding .env.{production|development}.local")

	cmd.AddCommand(&cobra.Command{
		Use:   "consume",
		Short: "Consume conversion jobs from the message broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), config.ModeQueue)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Accept conversion jobs over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.run(cmd.Context(), config.ModeHTTP)
		},
	})
	return cmd
}

func (c *cli) setup(_ *cobra.Command, _ []string) error {
	envFile, err := config.LoadEnvFile(c.envDir, os.Getenv("ENV"))
	if err != nil {
		return err
	}
	c.cfg, err = config.Load(c.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.logger, err = logging.New(logging.Config{
		Development: c.cfg.Logging.Development,
		File:        c.cfg.Logging.File,
		MaxSizeMB:   c.cfg.Logging.MaxSizeMB,
		MaxBackups:  c.cfg.Logging.MaxBackups,
		MaxAgeDays:  c.cfg.Logging.MaxAgeDays,
		Compress:    c.cfg.Logging.Compress,
	})
	if err != nil {
		return fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(c.logger)
	if envFile != "" {
		c.logger.Debug("loaded env file", zap.String("path", envFile))
	}
	return nil
}

func (c *cli) run(ctx context.Context, mode string) error {
	cfg := c.cfg
	if mode != "" && mode != cfg.Mode {
		cfg.Mode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	app, err := buildApp(ctx, &cfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application services: %w", err)
	}
	return app.Run(ctx)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		if logger := zap.L(); logger.Core().Enabled(zap.FatalLevel) {
			logger.Fatal("command execution failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

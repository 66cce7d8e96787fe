package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/shopintake/core/config"
	"github.com/m3rciful/shopintake/core/logger"
	"github.com/m3rciful/shopintake/core/metrics"
	coretelegram "github.com/m3rciful/shopintake/core/telegram"
)

const metricsShutdownTimeout = 5 * time.Second

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
	Close() error
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigPath wins over ConfigEnvVar and DefaultConfigPath.
	ConfigPath        string
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (*coreconfig.Config, error)
	Bootstrap  func(ctx context.Context, cfg *coreconfig.Config) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
}

// ResolveConfigPath picks the config file from the explicit path, the env var
// or the default, in that order. An empty result means env-only configuration.
func ResolveConfigPath(explicit, envVar, fallback string) string {
	if explicit != "" {
		return explicit
	}
	if envVar == "" {
		envVar = "CONFIG_PATH"
	}
	if p := os.Getenv(envVar); p != "" {
		return p
	}
	return fallback
}

// Run loads configuration, bootstraps the Telegram app, and starts the bot runtime.
func Run(opts Options) error {
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}
	load := opts.LoadConfig
	if load == nil {
		load = coreconfig.Load
	}

	cfgPath := ResolveConfigPath(opts.ConfigPath, opts.ConfigEnvVar, opts.DefaultConfigPath)
	if cfgPath != "" {
		log.Printf("loading config: %s", cfgPath)
	} else {
		log.Printf("loading config from environment")
	}
	cfg, err := load(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()
	defer func() {
		if err := application.Close(); err != nil {
			logger.L.With("component", "app").Warn("close failed",
				slog.String("event", "shutdown"),
				slog.String("err", err.Error()),
			)
		}
	}()

	var metricsSrv *metrics.Server
	if cfg.Metrics.Listen != "" {
		metricsSrv = metrics.NewServer(cfg.Metrics.Listen)
		metricsSrv.Start()
	}

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.L.With("component", "app").Info("app ready",
			slog.String("event", "ready"),
			slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.L.With("component", "app").Info("shutting down...",
			slog.String("event", "shutdown"),
		)
		if metricsSrv != nil {
			sctx, scancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer scancel()
			if err := metricsSrv.Shutdown(sctx); err != nil {
				logger.Metrics.Warn("metrics shutdown failed",
					slog.String("event", "metrics.shutdown"),
					slog.String("err", err.Error()),
				)
			}
		}
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

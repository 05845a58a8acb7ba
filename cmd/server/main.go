package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/mse-data/internal/api"
	"github.com/rickgao/mse-data/internal/cache"
	"github.com/rickgao/mse-data/internal/config"
	"github.com/rickgao/mse-data/internal/database"
	"github.com/rickgao/mse-data/internal/logging"
	"github.com/rickgao/mse-data/internal/normalize"
	"github.com/rickgao/mse-data/internal/poller"
	"github.com/rickgao/mse-data/internal/scheduler"
	"github.com/rickgao/mse-data/internal/scraper"
	"github.com/rickgao/mse-data/internal/securities"
	"github.com/rickgao/mse-data/internal/server"
	"github.com/rickgao/mse-data/internal/store"
	"github.com/rickgao/mse-data/internal/version"
	"github.com/rickgao/mse-data/internal/writer"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	flag.Parse()

	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	slog.SetDefault(logger)

	logger.Info("starting server",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger.Info("database connected", "host", cfg.Database.Host, "database", cfg.Database.Name)

	var latest cache.LatestCache = cache.Nop{}
	if cfg.Cache.Addr != "" {
		rc, err := cache.NewRedis(ctx, cfg.Cache)
		if err != nil {
			logger.Warn("redis unavailable, serving latest prices uncached", "addr", cfg.Cache.Addr, "error", err)
		} else {
			defer rc.Close()
			latest = rc
			logger.Info("redis cache connected", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
		}
	}

	policy, err := normalize.ParseSkipPolicy(cfg.Normalize.SkipPolicy)
	if err != nil {
		logger.Error("invalid skip policy", "error", err)
		os.Exit(1)
	}

	exchangeLoc, err := cfg.Scraper.Location()
	if err != nil {
		logger.Error("invalid exchange time zone", "error", err)
		os.Exit(1)
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithMaxBackoff(cfg.API.MaxBackoff),
		api.WithRateLimit(cfg.API.RequestsPerSecond),
		api.WithUserAgent(cfg.API.UserAgent),
	)

	prices := store.New(pool, logger)
	registry := securities.NewRegistry(client, logger)
	p := poller.New(
		poller.Config{Concurrency: cfg.Poller.Concurrency},
		registry,
		prices,
		scraper.New(client, normalize.NewNormalizer(policy, logger),
			scraper.WithLookbackYears(cfg.Scraper.LookbackYears),
			scraper.WithLocation(exchangeLoc),
			scraper.WithLogger(logger),
		),
		writer.NewPriceWriter(writer.WriterConfig{BatchSize: cfg.Writer.BatchSize}, pool, logger),
		logger,
	)

	// Stored prices change after every run.
	p.OnRunComplete(func(s poller.Summary) {
		if s.Records == 0 {
			return
		}
		invalidateCtx, invalidateCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer invalidateCancel()
		if err := latest.Invalidate(invalidateCtx); err != nil {
			logger.Warn("failed to invalidate latest prices cache", "error", err)
		}
	})

	if err := p.Start(ctx); err != nil {
		logger.Error("failed to start poller", "error", err)
		os.Exit(1)
	}

	sched := scheduler.New(logger)
	if cfg.Poller.Schedule != "" {
		job := scheduler.JobFunc{
			JobName: "scrape",
			Fn: func() error {
				if !p.Trigger() {
					logger.Info("scheduled scrape skipped, run already in progress")
				}
				return nil
			},
		}
		if err := sched.AddJob(cfg.Poller.Schedule, job); err != nil {
			logger.Error("failed to schedule scrape", "error", err)
			os.Exit(1)
		}
	}
	sched.Start()

	srv := server.New(server.Config{
		Port:        cfg.Server.Port,
		MetricsPath: cfg.Metrics.Path,
		Logger:      logger,
		Prices:      prices,
		Runs:        p,
		DB:          pool,
		Securities:  registry,
		Cache:       latest,
	})

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	logger.Info("server running",
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Server.Port),
		"schedule", cfg.Poller.Schedule,
	)

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}
	sched.Stop()
	if err := p.Stop(shutdownCtx); err != nil {
		logger.Error("poller shutdown error", "error", err)
	}

	logger.Info("server stopped")
}

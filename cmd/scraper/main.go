package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/mse-data/internal/api"
	"github.com/rickgao/mse-data/internal/config"
	"github.com/rickgao/mse-data/internal/database"
	"github.com/rickgao/mse-data/internal/logging"
	"github.com/rickgao/mse-data/internal/normalize"
	"github.com/rickgao/mse-data/internal/poller"
	"github.com/rickgao/mse-data/internal/scraper"
	"github.com/rickgao/mse-data/internal/securities"
	"github.com/rickgao/mse-data/internal/store"
	"github.com/rickgao/mse-data/internal/version"
	"github.com/rickgao/mse-data/internal/writer"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	flag.Parse()

	start := time.Now()

	if err := config.LoadEnvFile(*envPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(os.Stdout, cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	slog.SetDefault(logger)

	logger.Info("starting scraper",
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

	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)

	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return 1
	}
	defer pool.Close()

	policy, err := normalize.ParseSkipPolicy(cfg.Normalize.SkipPolicy)
	if err != nil {
		logger.Error("invalid skip policy", "error", err)
		return 1
	}

	exchangeLoc, err := cfg.Scraper.Location()
	if err != nil {
		logger.Error("invalid exchange time zone", "error", err)
		return 1
	}

	client := api.NewClient(cfg.API.BaseURL,
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithMaxBackoff(cfg.API.MaxBackoff),
		api.WithRateLimit(cfg.API.RequestsPerSecond),
		api.WithUserAgent(cfg.API.UserAgent),
	)

	p := poller.New(
		poller.Config{Concurrency: cfg.Poller.Concurrency},
		securities.NewRegistry(client, logger),
		store.New(pool, logger),
		scraper.New(client, normalize.NewNormalizer(policy, logger),
			scraper.WithLookbackYears(cfg.Scraper.LookbackYears),
			scraper.WithLocation(exchangeLoc),
			scraper.WithLogger(logger),
		),
		writer.NewPriceWriter(writer.WriterConfig{BatchSize: cfg.Writer.BatchSize}, pool, logger),
		logger,
	)

	summary, err := p.Run(ctx)
	elapsed := time.Since(start)

	var discoveryErr *api.DiscoveryError
	switch {
	case errors.As(err, &discoveryErr):
		logger.Error("security discovery failed", "error", err, "elapsed", elapsed)
		return 1
	case err != nil:
		logger.Error("scrape run aborted", "error", err, "elapsed", elapsed)
		return 1
	}

	logger.Info("scraper finished",
		"securities", summary.Securities,
		"failed", summary.Failed,
		"records", summary.Records,
		"elapsed", elapsed,
	)
	return 0
}

package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/mse-data/internal/metrics"
	"github.com/rickgao/mse-data/internal/model"
)

// Poller runs scrape cycles over all listed securities.
type Poller struct {
	cfg        Config
	codes      CodeSource
	watermarks WatermarkSource
	scraper    SecurityScraper
	persister  Persister
	logger     *slog.Logger

	running atomic.Bool
	trigger chan struct{}

	mu          sync.Mutex
	lastSummary *Summary
	hooks       []func(Summary)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, codes CodeSource, watermarks WatermarkSource, s SecurityScraper, persister Persister, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Poller{
		cfg:        cfg,
		codes:      codes,
		watermarks: watermarks,
		scraper:    s,
		persister:  persister,
		logger:     logger,
		trigger:    make(chan struct{}, 1),
	}
}

// OnRunComplete registers fn to be called after every finished run.
func (p *Poller) OnRunComplete(fn func(Summary)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, fn)
}

// Running reports whether a run is executing.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// LastSummary returns the summary of the most recent finished run.
func (p *Poller) LastSummary() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastSummary == nil {
		return Summary{}, false
	}
	return *p.lastSummary, true
}

// Start begins the background loop that executes triggered runs.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.loop()

	p.logger.Info("poller started", "concurrency", p.cfg.Concurrency)
	return nil
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger queues a run for the background loop. It returns false when a
// run is already executing or queued.
func (p *Poller) Trigger() bool {
	if p.running.Load() {
		return false
	}
	select {
	case p.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *Poller) loop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-p.trigger:
			if _, err := p.Run(p.ctx); err != nil {
				p.logger.Error("scrape run failed", "error", err)
			}
		}
	}
}

// Run executes one full scrape cycle. Discovery and watermark failures are
// fatal and returned; per-security failures are only counted in the Summary.
func (p *Poller) Run(ctx context.Context) (Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		return Summary{}, ErrRunInProgress
	}
	defer p.running.Store(false)

	summary := Summary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := p.logger.With("run_id", summary.RunID)

	codes, err := p.codes.Refresh(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("discover securities: %w", err)
	}

	marks, err := p.watermarks.Watermarks(ctx)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		return summary, fmt.Errorf("resolve watermarks: %w", err)
	}

	logger.Info("scrape run started",
		"securities", len(codes),
		"with_history", len(marks),
		"concurrency", p.cfg.Concurrency,
	)

	summary.Securities = len(codes)
	results := make(chan Result, len(codes))

	go func() {
		var g errgroup.Group
		g.SetLimit(p.cfg.Concurrency)
		for _, code := range codes {
			code := code
			var wm *time.Time
			if t, ok := marks.Lookup(code); ok {
				wm = &t
			}
			g.Go(func() error {
				results <- p.runTask(ctx, logger, code, wm)
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	for res := range results {
		summary.add(res)
		switch {
		case res.Err != nil:
			metrics.SecuritiesTotal.WithLabelValues("failed").Inc()
		case res.UpToDate:
			metrics.SecuritiesTotal.WithLabelValues("up_to_date").Inc()
		default:
			metrics.SecuritiesTotal.WithLabelValues("synced").Inc()
		}
	}

	sort.Slice(summary.FailedCodes, func(i, j int) bool { return summary.FailedCodes[i] < summary.FailedCodes[j] })
	summary.Duration = time.Since(summary.StartedAt)

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDurationSeconds.Observe(summary.Duration.Seconds())
	metrics.LastRunTimestamp.SetToCurrentTime()

	logger.Info("scrape run complete",
		"securities", summary.Securities,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"skipped", summary.Skipped,
		"records", summary.Records,
		"deferred", summary.Deferred,
		"failed_windows", summary.FailedWindows,
		"duration", summary.Duration,
	)

	p.mu.Lock()
	p.lastSummary = &summary
	hooks := append([]func(Summary){}, p.hooks...)
	p.mu.Unlock()
	for _, fn := range hooks {
		fn(summary)
	}

	return summary, ctx.Err()
}

// runTask scrapes and persists one security. It never panics and never
// returns an error directly; failures are carried in the Result.
func (p *Poller) runTask(ctx context.Context, logger *slog.Logger, code model.SecurityCode, wm *time.Time) (res Result) {
	start := time.Now()
	res.Code = code

	metrics.InFlightTasks.Inc()
	defer metrics.InFlightTasks.Dec()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("panic: %v", r)
			logger.Error("security task panicked",
				"code", code,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
		res.Duration = time.Since(start)
	}()

	outcome, err := p.scraper.RunForSecurity(ctx, code, wm)
	res.UpToDate = outcome.UpToDate
	res.FailedWindows = outcome.FailedWindows
	if err != nil {
		res.Err = fmt.Errorf("scrape %s: %w", code, err)
		logger.Warn("security scrape aborted", "code", code, "error", err)
		return res
	}

	records := outcome.Contiguous()
	res.Deferred = len(outcome.Records) - len(records)
	if res.Deferred > 0 {
		logger.Warn("holding back records after failed window",
			"code", code,
			"deferred", res.Deferred,
			"resume_from", outcome.FailedWindows[0].String(),
		)
	}

	if len(records) == 0 {
		if !outcome.UpToDate {
			logger.Debug("no new records", "code", code, "failed_windows", len(outcome.FailedWindows))
		}
		return res
	}

	persisted, err := p.persister.Persist(ctx, code, records)
	res.Records = persisted.Persisted
	if err != nil {
		res.Err = err
		logger.Error("persist failed", "code", code, "error", err)
		return res
	}

	logger.Info("security synced",
		"code", code,
		"records", persisted.Persisted,
		"batches", persisted.Batches,
		"failed_windows", len(outcome.FailedWindows),
		"duration", time.Since(start),
	)
	return res
}

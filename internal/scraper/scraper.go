package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/mse-data/internal/locale"
	"github.com/rickgao/mse-data/internal/model"
	"github.com/rickgao/mse-data/internal/normalize"
)

// Fetcher returns the raw table rows of one history window.
type Fetcher interface {
	FetchHistory(ctx context.Context, w model.FetchWindow) ([][]string, error)
}

// Outcome is the result of scraping one security.
type Outcome struct {
	Code          model.SecurityCode
	Windows       int
	Records       []model.PriceRecord
	FailedWindows []model.FetchWindow
	Stats         normalize.Stats
	UpToDate      bool
}

// Contiguous returns the records dated before the earliest failed window.
// Records past a gap are held back so the watermark never moves beyond it.
func (o Outcome) Contiguous() []model.PriceRecord {
	if len(o.FailedWindows) == 0 {
		return o.Records
	}
	gap := o.FailedWindows[0].From
	for _, w := range o.FailedWindows[1:] {
		if w.From.Before(gap) {
			gap = w.From
		}
	}

	out := make([]model.PriceRecord, 0, len(o.Records))
	for _, r := range o.Records {
		if r.Date.Before(gap) {
			out = append(out, r)
		}
	}
	return out
}

// Scraper fetches and normalizes the missing history of a security.
type Scraper struct {
	fetcher       Fetcher
	normalizer    *normalize.Normalizer
	lookbackYears int
	now           func() time.Time
	loc           *time.Location
	logger        *slog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLookbackYears sets how many years back a security without history is fetched.
func WithLookbackYears(n int) Option {
	return func(s *Scraper) {
		s.lookbackYears = n
	}
}

// WithClock overrides the time source used to determine "today".
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) {
		s.now = now
	}
}

// WithLocation sets the exchange time zone that decides the current trading day.
func WithLocation(loc *time.Location) Option {
	return func(s *Scraper) {
		s.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// New creates a Scraper.
func New(fetcher Fetcher, normalizer *normalize.Normalizer, opts ...Option) *Scraper {
	s := &Scraper{
		fetcher:       fetcher,
		normalizer:    normalizer,
		lookbackYears: DefaultLookbackYears,
		now:           time.Now,
		loc:           time.UTC,
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.normalizer == nil {
		s.normalizer = normalize.NewNormalizer(normalize.SkipNonTrading, s.logger)
	}

	return s
}

// today is the current calendar day at the exchange.
func (s *Scraper) today() time.Time {
	return locale.Day(s.now().In(s.loc))
}

// RunForSecurity fetches every window after watermark, sequentially.
// Failed windows are logged and listed in the outcome; the returned error is
// non-nil only when ctx is cancelled.
func (s *Scraper) RunForSecurity(ctx context.Context, code model.SecurityCode, watermark *time.Time) (Outcome, error) {
	out := Outcome{Code: code}

	windows := Windows(code, watermark, s.today(), s.lookbackYears)
	if len(windows) == 0 {
		out.UpToDate = true
		s.logger.Debug("security up to date", "code", code)
		return out, nil
	}
	out.Windows = len(windows)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		rows, err := s.fetcher.FetchHistory(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			s.logger.Warn("window fetch failed",
				"code", code,
				"window", w.String(),
				"error", err,
			)
			out.FailedWindows = append(out.FailedWindows, w)
			continue
		}

		records, stats := s.normalizer.Normalize(code, w, rows)
		out.Stats.Add(stats)
		out.Records = append(out.Records, records...)
	}

	s.logger.Debug("security scraped",
		"code", code,
		"windows", out.Windows,
		"failed_windows", len(out.FailedWindows),
		"records", len(out.Records),
		"skipped_rows", out.Stats.Skipped(),
	)

	return out, nil
}

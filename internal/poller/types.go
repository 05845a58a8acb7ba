package poller

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/mse-data/internal/model"
	"github.com/rickgao/mse-data/internal/scraper"
	"github.com/rickgao/mse-data/internal/store"
	"github.com/rickgao/mse-data/internal/writer"
)

// ErrRunInProgress is returned by Run when another run has not finished.
var ErrRunInProgress = errors.New("scrape run already in progress")

// CodeSource discovers the securities to scrape.
type CodeSource interface {
	Refresh(ctx context.Context) ([]model.SecurityCode, error)
}

// WatermarkSource resolves the last stored day of every security.
type WatermarkSource interface {
	Watermarks(ctx context.Context) (store.Watermarks, error)
}

// SecurityScraper fetches the missing history of one security.
type SecurityScraper interface {
	RunForSecurity(ctx context.Context, code model.SecurityCode, watermark *time.Time) (scraper.Outcome, error)
}

// Persister commits the records of one security.
type Persister interface {
	Persist(ctx context.Context, code model.SecurityCode, records []model.PriceRecord) (writer.Result, error)
}

// Config holds poller configuration.
type Config struct {
	Concurrency int // Max concurrent security tasks (default: 10)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 10,
	}
}

// Result is the outcome of one security task.
type Result struct {
	Code          model.SecurityCode
	UpToDate      bool
	Records       int // Records committed
	Deferred      int // Records held back behind a failed window
	FailedWindows []model.FetchWindow
	Duration      time.Duration
	Err           error
}

// Summary aggregates the results of one run.
type Summary struct {
	RunID         string               `json:"run_id"`
	StartedAt     time.Time            `json:"started_at"`
	Securities    int                  `json:"securities"`
	Succeeded     int                  `json:"succeeded"`
	Failed        int                  `json:"failed"`
	Skipped       int                  `json:"skipped"`
	Records       int                  `json:"records"`
	Deferred      int                  `json:"deferred"`
	FailedWindows int                  `json:"failed_windows"`
	FailedCodes   []model.SecurityCode `json:"failed_codes,omitempty"`
	Duration      time.Duration        `json:"duration"`
}

func (s *Summary) add(r Result) {
	s.Records += r.Records
	s.Deferred += r.Deferred
	s.FailedWindows += len(r.FailedWindows)

	switch {
	case r.Err != nil:
		s.Failed++
		s.FailedCodes = append(s.FailedCodes, r.Code)
	case r.UpToDate:
		s.Skipped++
	default:
		s.Succeeded++
	}
}

package scraper

import (
	"time"

	"github.com/rickgao/mse-data/internal/locale"
	"github.com/rickgao/mse-data/internal/model"
)

// DefaultLookbackYears is how far back a security without history is fetched.
const DefaultLookbackYears = 10

// Windows returns the yearly fetch windows still missing for code.
// A nil watermark means nothing is stored and the full lookback is fetched.
// A watermark on or after today yields no windows.
func Windows(code model.SecurityCode, watermark *time.Time, today time.Time, lookbackYears int) []model.FetchWindow {
	today = locale.Day(today)
	if lookbackYears < 1 {
		lookbackYears = DefaultLookbackYears
	}

	startYear := today.Year() - lookbackYears
	var resume time.Time
	if watermark != nil {
		wm := locale.Day(*watermark)
		if !wm.Before(today) {
			return nil
		}
		startYear = wm.Year()
		resume = wm.AddDate(0, 0, 1)
	}

	windows := make([]model.FetchWindow, 0, today.Year()-startYear+1)
	for year := startYear; year <= today.Year(); year++ {
		from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		if year == startYear && watermark != nil {
			from = resume
		}

		to := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)
		if year == today.Year() {
			to = today
		}

		if from.After(to) {
			continue
		}
		windows = append(windows, model.FetchWindow{Code: code, From: from, To: to})
	}

	return windows
}

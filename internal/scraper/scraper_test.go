package scraper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/mse-data/internal/api"
	"github.com/rickgao/mse-data/internal/model"
	"github.com/rickgao/mse-data/internal/normalize"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeFetcher returns canned rows keyed by window start year.
type fakeFetcher struct {
	mu      sync.Mutex
	rows    map[int][][]string
	fail    map[int]error
	windows []model.FetchWindow
}

func (f *fakeFetcher) FetchHistory(ctx context.Context, w model.FetchWindow) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, w)
	if err := f.fail[w.From.Year()]; err != nil {
		return nil, err
	}
	return f.rows[w.From.Year()], nil
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestScraper(f Fetcher, now time.Time, lookback int) *Scraper {
	logger := quietLogger()
	return New(f, normalize.NewNormalizer(normalize.SkipNonTrading, logger),
		WithClock(fixedClock(now)),
		WithLookbackYears(lookback),
		WithLogger(logger),
	)
}

func TestRunForSecurity(t *testing.T) {
	f := &fakeFetcher{rows: map[int][][]string{
		2023: {{"15062023", "900,00", "", "", "", "1,00", "10", "0", "9000,00"}},
		2024: {
			{"02012024", "1000,00", "", "", "", "2,00", "5", "0", "5000,00"},
			{"03012024", "1000,00", "", "", "", "0,00", "0", "0", "0,00"},
		},
	}}

	s := newTestScraper(f, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), 1)
	out, err := s.RunForSecurity(context.Background(), "ALK", nil)
	if err != nil {
		t.Fatalf("RunForSecurity() error = %v", err)
	}

	if out.Windows != 2 || len(f.windows) != 2 {
		t.Errorf("windows = %d, fetched = %d, want 2", out.Windows, len(f.windows))
	}
	if len(out.Records) != 2 {
		t.Fatalf("len(Records) = %d, want 2", len(out.Records))
	}
	if out.Stats.SkippedNonTrading != 1 {
		t.Errorf("SkippedNonTrading = %d, want 1", out.Stats.SkippedNonTrading)
	}
	if len(out.FailedWindows) != 0 {
		t.Errorf("FailedWindows = %v, want none", out.FailedWindows)
	}
}

func TestRunForSecurity_UpToDate(t *testing.T) {
	f := &fakeFetcher{}
	now := time.Date(2024, 5, 1, 15, 0, 0, 0, time.UTC)
	wm := day(2024, 5, 1)

	out, err := newTestScraper(f, now, 10).RunForSecurity(context.Background(), "ALK", &wm)
	if err != nil {
		t.Fatalf("RunForSecurity() error = %v", err)
	}
	if !out.UpToDate {
		t.Error("UpToDate = false, want true")
	}
	if len(f.windows) != 0 {
		t.Errorf("fetched %d windows, want none", len(f.windows))
	}
}

func TestRunForSecurity_FailedWindowContinues(t *testing.T) {
	f := &fakeFetcher{
		rows: map[int][][]string{
			2024: {{"02012024", "1000,00", "", "", "", "2,00", "5", "0", "5000,00"}},
		},
		fail: map[int]error{
			2023: &api.FetchError{Attempts: 4, Err: errors.New("503")},
		},
	}

	out, err := newTestScraper(f, day(2024, 1, 10), 1).RunForSecurity(context.Background(), "ALK", nil)
	if err != nil {
		t.Fatalf("RunForSecurity() error = %v", err)
	}
	if len(out.FailedWindows) != 1 || out.FailedWindows[0].From.Year() != 2023 {
		t.Errorf("FailedWindows = %v, want the 2023 window", out.FailedWindows)
	}
	if len(out.Records) != 1 {
		t.Errorf("len(Records) = %d, want 1", len(out.Records))
	}
}

func TestRunForSecurity_NoData(t *testing.T) {
	out, err := newTestScraper(&fakeFetcher{}, day(2024, 1, 10), 3).RunForSecurity(context.Background(), "NEW", nil)
	if err != nil {
		t.Fatalf("RunForSecurity() error = %v", err)
	}
	if len(out.Records) != 0 || len(out.FailedWindows) != 0 {
		t.Errorf("out = %+v, want empty", out)
	}
	if out.Windows != 4 {
		t.Errorf("Windows = %d, want 4", out.Windows)
	}
}

func TestRunForSecurity_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{}
	_, err := newTestScraper(f, day(2024, 1, 10), 3).RunForSecurity(ctx, "ALK", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(f.windows) != 0 {
		t.Errorf("fetched %d windows after cancel", len(f.windows))
	}
}

// TestRunForSecurity_HTTP drives the scraper through the real client against
// a fake history endpoint.
func TestRunForSecurity_HTTP(t *testing.T) {
	page := `<table id="resultsTable"><tbody>
<tr><td>01012024</td><td>1000,00</td><td>1050,00</td><td>950,00</td><td>1010,00</td><td>2,50</td><td>150</td><td>145000,00</td><td>151500,00</td></tr>
</tbody></table>`

	var mu sync.Mutex
	var forms []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		mu.Lock()
		forms = append(forms, r.PostForm.Get("Code")+" "+r.PostForm.Get("FromDate")+"-"+r.PostForm.Get("ToDate"))
		mu.Unlock()
		w.Write([]byte(page))
	}))
	defer server.Close()

	client := api.NewClient(server.URL, api.WithLogger(quietLogger()))
	s := newTestScraper(client, day(2024, 12, 31), 0)
	wm := day(2023, 12, 31)

	out, err := s.RunForSecurity(context.Background(), "ALK", &wm)
	if err != nil {
		t.Fatalf("RunForSecurity() error = %v", err)
	}

	if len(forms) != 1 || forms[0] != "ALK 01.01.2024-31.12.2024" {
		t.Errorf("requests = %v, want [ALK 01.01.2024-31.12.2024]", forms)
	}
	if len(out.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1", len(out.Records))
	}
	if got := out.Records[0].Key(); got != "ALK/01012024" {
		t.Errorf("Key() = %q, want ALK/01012024", got)
	}
}

func TestOutcomeContiguous(t *testing.T) {
	day := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }
	records := []model.PriceRecord{
		{Code: "ALK", Date: day(2022, 6, 1)},
		{Code: "ALK", Date: day(2024, 3, 4)},
		{Code: "ALK", Date: day(2025, 2, 3)},
	}
	window := func(y int) model.FetchWindow {
		return model.FetchWindow{Code: "ALK", From: day(y, 1, 1), To: day(y, 12, 31)}
	}

	tests := []struct {
		name   string
		failed []model.FetchWindow
		want   int
	}{
		{name: "no failures", want: 3},
		{name: "gap in 2023", failed: []model.FetchWindow{window(2023)}, want: 1},
		{name: "earliest gap wins", failed: []model.FetchWindow{window(2025), window(2022)}, want: 0},
		{name: "gap after all records", failed: []model.FetchWindow{window(2026)}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := Outcome{Code: "ALK", Records: records, FailedWindows: tt.failed}
			if got := o.Contiguous(); len(got) != tt.want {
				t.Errorf("Contiguous() = %d records, want %d", len(got), tt.want)
			}
		})
	}
}

func TestRunForSecurity_ExchangeLocation(t *testing.T) {
	// 23:30 UTC on New Year's Eve is already 2025 at the exchange.
	now := time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC)
	wm := time.Date(2024, 12, 30, 0, 0, 0, 0, time.UTC)
	exchange := time.FixedZone("CET", 3600)

	tests := []struct {
		name     string
		loc      *time.Location
		wantLast time.Time
		want     int
	}{
		{name: "utc", loc: time.UTC, wantLast: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), want: 1},
		{name: "exchange zone", loc: exchange, wantLast: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), want: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{}
			logger := quietLogger()
			s := New(f, normalize.NewNormalizer(normalize.SkipNonTrading, logger),
				WithClock(fixedClock(now)),
				WithLocation(tt.loc),
				WithLogger(logger),
			)

			if _, err := s.RunForSecurity(context.Background(), "ALK", &wm); err != nil {
				t.Fatalf("RunForSecurity() error = %v", err)
			}
			if len(f.windows) != tt.want {
				t.Fatalf("windows = %v, want %d", f.windows, tt.want)
			}
			if last := f.windows[len(f.windows)-1]; !last.To.Equal(tt.wantLast) {
				t.Errorf("last window ends %v, want %v", last.To, tt.wantLast)
			}
		})
	}
}

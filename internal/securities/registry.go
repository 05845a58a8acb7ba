package securities

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/rickgao/mse-data/internal/model"
)

// Lister fetches the raw option values of the exchange's security selector.
type Lister interface {
	ListCodes(ctx context.Context) ([]string, error)
}

// Change describes how a refresh altered the known code set.
type Change struct {
	Added   []model.SecurityCode
	Removed []model.SecurityCode
}

// Registry holds the codes found by the most recent discovery.
type Registry struct {
	lister Lister
	logger *slog.Logger

	mu         sync.RWMutex
	codes      []model.SecurityCode
	known      map[model.SecurityCode]bool
	lastSyncAt time.Time
}

// NewRegistry creates a registry backed by lister.
func NewRegistry(lister Lister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		lister: lister,
		logger: logger,
		known:  make(map[model.SecurityCode]bool),
	}
}

// Refresh rediscovers the code set. Errors leave the previous set untouched
// and are returned unchanged so callers can detect discovery failures.
func (r *Registry) Refresh(ctx context.Context) ([]model.SecurityCode, error) {
	start := time.Now()

	raw, err := r.lister.ListCodes(ctx)
	if err != nil {
		return nil, err
	}
	codes := FilterCodes(raw)

	r.mu.Lock()
	change := diff(r.known, codes)
	r.codes = codes
	r.known = make(map[model.SecurityCode]bool, len(codes))
	for _, c := range codes {
		r.known[c] = true
	}
	r.lastSyncAt = time.Now()
	r.mu.Unlock()

	if len(change.Added) > 0 || len(change.Removed) > 0 {
		r.logger.Info("security list changed",
			"total", len(codes),
			"added", len(change.Added),
			"removed", len(change.Removed),
			"duration", time.Since(start),
		)
	} else {
		r.logger.Debug("security list unchanged",
			"total", len(codes),
			"duration", time.Since(start),
		)
	}

	return r.Codes(), nil
}

// Codes returns a copy of the current code set in sorted order.
func (r *Registry) Codes() []model.SecurityCode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SecurityCode, len(r.codes))
	copy(out, r.codes)
	return out
}

// LastSyncAt returns when the last successful refresh finished.
func (r *Registry) LastSyncAt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSyncAt
}

// FilterCodes trims, de-duplicates and sorts raw option values, dropping
// empty values and any code that contains a digit.
func FilterCodes(raw []string) []model.SecurityCode {
	seen := make(map[string]bool, len(raw))
	out := make([]model.SecurityCode, 0, len(raw))

	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || strings.IndexFunc(s, unicode.IsDigit) >= 0 {
			continue
		}
		seen[s] = true
		out = append(out, model.SecurityCode(s))
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func diff(known map[model.SecurityCode]bool, codes []model.SecurityCode) Change {
	var change Change
	next := make(map[model.SecurityCode]bool, len(codes))
	for _, c := range codes {
		next[c] = true
		if !known[c] {
			change.Added = append(change.Added, c)
		}
	}
	for c := range known {
		if !next[c] {
			change.Removed = append(change.Removed, c)
		}
	}
	sort.Slice(change.Removed, func(i, j int) bool { return change.Removed[i] < change.Removed[j] })
	return change
}

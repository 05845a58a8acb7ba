package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-chi/chi/v5"

	"github.com/rickgao/mse-data/internal/analysis"
	"github.com/rickgao/mse-data/internal/model"
	"github.com/rickgao/mse-data/internal/version"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	response := map[string]any{
		"status":  "healthy",
		"version": version.Get(),
		"running": s.runs != nil && s.runs.Running(),
	}

	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			status = http.StatusServiceUnavailable
			response["status"] = "unhealthy"
			response["database"] = err.Error()
		}
	}
	if s.runs != nil {
		if last, ok := s.runs.LastSummary(); ok {
			response["last_run"] = last
		}
	}
	if s.securities != nil {
		securities := map[string]any{"count": len(s.securities.Codes())}
		if at := s.securities.LastSyncAt(); !at.IsZero() {
			securities["last_sync_at"] = at
		}
		response["securities"] = securities
	}

	s.writeJSON(w, status, response)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prices, ok, err := s.cache.GetLatest(ctx)
	if err != nil {
		s.logger.Warn("latest prices cache read failed", "error", err)
	}
	if ok {
		s.writeJSON(w, http.StatusOK, prices)
		return
	}

	prices, err = s.prices.Latest(ctx)
	if err != nil {
		s.logger.Error("latest prices query failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "error fetching latest prices")
		return
	}

	if err := s.cache.SetLatest(ctx, prices); err != nil {
		s.logger.Warn("latest prices cache write failed", "error", err)
	}
	s.writeJSON(w, http.StatusOK, prices)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	code, ok := parseCode(chi.URLParam(r, "code"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid security code")
		return
	}

	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxHistoryLimit {
			s.writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		limit = n
	}

	records, err := s.prices.History(r.Context(), code, limit)
	if err != nil {
		s.logger.Error("history query failed", "code", code, "error", err)
		s.writeError(w, http.StatusInternalServerError, "error fetching history")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"code":    code,
		"records": records,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	code, ok := parseCode(chi.URLParam(r, "code"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid security code")
		return
	}

	records, err := s.prices.History(r.Context(), code, analysis.HistoryDepth)
	if err != nil {
		s.logger.Error("history query failed", "code", code, "error", err)
		s.writeError(w, http.StatusInternalServerError, "error fetching history")
		return
	}

	report, err := analysis.Analyze(code, records, analysis.DefaultConfig())
	if errors.Is(err, analysis.ErrNoData) {
		s.writeError(w, http.StatusNotFound, "no data found for security code "+string(code))
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeError(w, http.StatusServiceUnavailable, "scraping disabled")
		return
	}
	if !s.runs.Trigger() {
		s.writeError(w, http.StatusConflict, "scrape run already in progress")
		return
	}

	s.logger.Info("scrape run triggered", "remote_addr", r.RemoteAddr)
	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// parseCode accepts alphabetic security codes, case-insensitively.
func parseCode(raw string) (model.SecurityCode, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" || len(code) > 16 {
		return "", false
	}
	for _, c := range code {
		if !unicode.IsLetter(c) {
			return "", false
		}
	}
	return model.SecurityCode(code), true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

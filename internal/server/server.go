// Package server exposes stored prices, indicator analysis and scrape
// control over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/rickgao/mse-data/internal/cache"
	"github.com/rickgao/mse-data/internal/metrics"
	"github.com/rickgao/mse-data/internal/model"
	"github.com/rickgao/mse-data/internal/poller"
)

// PriceReader reads stored prices.
type PriceReader interface {
	Latest(ctx context.Context) ([]model.LatestPrice, error)
	History(ctx context.Context, code model.SecurityCode, limit int) ([]model.PriceRecord, error)
}

// RunController starts scrape runs and reports on them.
type RunController interface {
	Trigger() bool
	Running() bool
	LastSummary() (poller.Summary, bool)
}

// SecuritySource reports the listed securities known to the scraper.
type SecuritySource interface {
	Codes() []model.SecurityCode
	LastSyncAt() time.Time
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds server dependencies.
type Config struct {
	Port        int
	MetricsPath string
	Logger      *slog.Logger
	Prices      PriceReader
	Runs        RunController
	DB          Pinger
	Securities  SecuritySource
	Cache       cache.LatestCache // nil disables caching
}

// Server represents the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	logger *slog.Logger

	prices     PriceReader
	runs       RunController
	db         Pinger
	securities SecuritySource
	cache      cache.LatestCache
	port       int
}

// New creates a new HTTP server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	latest := cfg.Cache
	if latest == nil {
		latest = cache.Nop{}
	}

	s := &Server{
		router:     chi.NewRouter(),
		logger:     logger.With("component", "server"),
		prices:     cfg.Prices,
		runs:       cfg.Runs,
		db:         cfg.DB,
		securities: cfg.Securities,
		cache:      latest,
		port:       cfg.Port,
	}

	s.setupMiddleware()
	s.setupRoutes(cfg.MetricsPath)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
}

func (s *Server) setupRoutes(metricsPath string) {
	s.router.Get("/health", s.handleHealth)

	if metricsPath != "" {
		s.router.Handle(metricsPath, metrics.Handler())
	}

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/latest", s.handleLatest)
		r.Post("/scrape", s.handleScrape)

		r.Route("/stocks/{code}", func(r chi.Router) {
			r.Get("/history", s.handleHistory)
			r.Get("/analysis", s.handleAnalysis)
		})
	})
}

// Start starts the HTTP server. It blocks until the server stops.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "port", s.port)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

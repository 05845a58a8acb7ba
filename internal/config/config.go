package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // exchange zone available on hosts without zoneinfo
)

// Config is the root configuration for the scraper and the query server.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Database  DBConfig        `yaml:"database"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	Normalize NormalizeConfig `yaml:"normalize"`
	Writer    WriterConfig    `yaml:"writer"`
	Poller    PollerConfig    `yaml:"poller"`
	Server    ServerConfig    `yaml:"server"`
	Cache     CacheConfig     `yaml:"cache"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Log       LogConfig       `yaml:"log"`
}

// APIConfig holds the exchange endpoint settings.
type APIConfig struct {
	BaseURL           string        `yaml:"base_url"` // Listing (GET) and history (POST) page
	UserAgent         string        `yaml:"user_agent"`
	Timeout           time.Duration `yaml:"timeout"` // Per-request deadline
	MaxRetries        int           `yaml:"max_retries"`
	RetryBackoff      time.Duration `yaml:"retry_backoff"` // First retry delay, doubled per attempt
	MaxBackoff        time.Duration `yaml:"max_backoff"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // 0 = unlimited
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ScraperConfig holds fetch window settings.
type ScraperConfig struct {
	LookbackYears int    `yaml:"lookback_years"` // History depth for securities with no stored rows
	Timezone      string `yaml:"timezone"`       // Exchange time zone deciding the current trading day
}

// Location returns the exchange time zone.
func (s ScraperConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scraper.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

// NormalizeConfig holds row validation settings.
type NormalizeConfig struct {
	SkipPolicy string `yaml:"skip_policy"` // non_trading, zero_change or both
}

// WriterConfig holds batch persister settings.
type WriterConfig struct {
	BatchSize int `yaml:"batch_size"` // Records per transaction
}

// PollerConfig holds fan-out settings.
type PollerConfig struct {
	Concurrency int    `yaml:"concurrency"`
	Schedule    string `yaml:"schedule"` // Cron expression for the server; empty disables
}

// ServerConfig holds query API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// CacheConfig holds the optional Redis cache for latest prices.
type CacheConfig struct {
	Addr     string        `yaml:"addr"` // host:port; empty disables the cache
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Path string `yaml:"path"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL         = "https://www.mse.mk/mk/stats/symbolhistory/REPL"
	DefaultUserAgent       = "mse-data/1.0"
	DefaultAPITimeout      = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryBackoff    = 1 * time.Second
	DefaultMaxBackoff      = 30 * time.Second
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 15
	DefaultMinConns        = 2
	DefaultLookbackYears   = 10
	DefaultTimezone        = "Europe/Skopje"
	DefaultSkipPolicy      = "non_trading"
	DefaultBatchSize       = 500
	DefaultPollConcurrency = 10
	DefaultServerPort      = 3000
	DefaultCacheTTL        = 10 * time.Minute
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.UserAgent == "" {
		c.API.UserAgent = DefaultUserAgent
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}
	if c.API.MaxBackoff == 0 {
		c.API.MaxBackoff = DefaultMaxBackoff
	}

	// Database defaults
	applyDBDefaults(&c.Database)

	if c.Scraper.LookbackYears == 0 {
		c.Scraper.LookbackYears = DefaultLookbackYears
	}
	if c.Scraper.Timezone == "" {
		c.Scraper.Timezone = DefaultTimezone
	}
	if c.Normalize.SkipPolicy == "" {
		c.Normalize.SkipPolicy = DefaultSkipPolicy
	}
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

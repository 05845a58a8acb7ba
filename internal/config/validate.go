package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
)

var validSkipPolicies = map[string]bool{
	"non_trading": true,
	"zero_change": true,
	"both":        true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}
	if c.API.MaxRetries < 0 {
		return errors.New("api.max_retries must be >= 0")
	}
	if c.API.RequestsPerSecond < 0 {
		return errors.New("api.requests_per_second must be >= 0")
	}

	if err := c.Database.validate("database"); err != nil {
		return err
	}

	if c.Scraper.LookbackYears < 1 {
		return errors.New("scraper.lookback_years must be >= 1")
	}
	if _, err := c.Scraper.Location(); err != nil {
		return err
	}
	if !validSkipPolicies[c.Normalize.SkipPolicy] {
		return fmt.Errorf("normalize.skip_policy must be one of non_trading, zero_change, both, got %q", c.Normalize.SkipPolicy)
	}
	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}

	if c.Poller.Concurrency < 1 {
		return errors.New("poller.concurrency must be >= 1")
	}
	// Every in-flight task may hold a connection while committing.
	if c.Poller.Concurrency > c.Database.MaxConns {
		return fmt.Errorf("poller.concurrency (%d) cannot exceed database.max_conns (%d)", c.Poller.Concurrency, c.Database.MaxConns)
	}
	if c.Poller.Schedule != "" {
		if _, err := cron.ParseStandard(c.Poller.Schedule); err != nil {
			return fmt.Errorf("poller.schedule %q: %w", c.Poller.Schedule, err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if !validLogLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

package database

import (
	"fmt"
	"net/url"

	"github.com/rickgao/mse-data/internal/config"
)

// ApplicationName identifies the ingester in pg_stat_activity.
const ApplicationName = "mse-data"

// connectTimeoutSeconds bounds the initial TCP/TLS handshake.
const connectTimeoutSeconds = "10"

// BuildConnString builds a PostgreSQL connection URL from config.
// User and password are escaped so special characters survive.
func BuildConnString(cfg config.DBConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	query := url.Values{}
	query.Set("sslmode", sslMode)
	query.Set("application_name", ApplicationName)
	query.Set("connect_timeout", connectTimeoutSeconds)

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:     "/" + cfg.Name,
		RawQuery: query.Encode(),
	}
	return u.String()
}

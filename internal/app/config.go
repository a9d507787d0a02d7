package app

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for the application.
type Config struct {
	AppEnv            string        `envconfig:"APP_ENV" default:"development"`
	AppAddr           string        `envconfig:"APP_ADDR" default:":8080"`
	AppReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout   time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"15s"`
	AppRequestTimeout time.Duration `envconfig:"APP_REQUEST_TIMEOUT" default:"30s"`

	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	StoragePath      string        `envconfig:"STORAGE_PATH" default:"primanota.db"`
	BusyRetryMax     int           `envconfig:"BUSY_RETRY_MAX" default:"5"`
	BusyRetryInitial time.Duration `envconfig:"BUSY_RETRY_INITIAL" default:"150ms"`

	DefaultProtocolSeries string `envconfig:"DEFAULT_PROTOCOL_SERIES" default:"GEN"`
	EquityAccountCode     string `envconfig:"EQUITY_ACCOUNT_CODE" default:"9999"`

	RateLimitPerMinute int `envconfig:"RATE_LIMIT_PER_MINUTE" default:"120"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

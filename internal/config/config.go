package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

// ErrMissingCredentials is returned by Validate when the pixel ID or the
// access token is not configured.
var ErrMissingCredentials = errors.New("META_PIXEL_ID and META_ACCESS_TOKEN required")

// Config contains runtime configuration required by the service.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	// Server
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// Conversions API
	PixelID     string        `env:"META_PIXEL_ID"`
	AccessToken string        `env:"META_ACCESS_TOKEN"`
	TestCode    string        `env:"META_TEST_CODE"`
	APIVersion  string        `env:"META_API_VERSION" envDefault:"v19.0"`
	GraphURL    string        `env:"META_GRAPH_URL" envDefault:"https://graph.facebook.com"`
	Timeout     time.Duration `env:"META_TIMEOUT" envDefault:"5s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads configuration from environment variables.
//
// Missing credentials are not a load error: the server still starts, serves
// liveness, and answers relay requests with a configuration error until the
// variables are provided.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}

	cfg.PixelID = strings.TrimSpace(cfg.PixelID)
	cfg.AccessToken = strings.TrimSpace(cfg.AccessToken)
	cfg.TestCode = strings.TrimSpace(cfg.TestCode)
	cfg.GraphURL = strings.TrimRight(strings.TrimSpace(cfg.GraphURL), "/")

	if cfg.Port == "" {
		return Config{}, errors.New("PORT must not be empty")
	}
	if cfg.Timeout <= 0 {
		return Config{}, errors.New("META_TIMEOUT must be positive")
	}
	if cfg.APIVersion == "" || cfg.GraphURL == "" {
		return Config{}, errors.New("META_API_VERSION and META_GRAPH_URL must not be empty")
	}

	return cfg, nil
}

// Validate reports whether the credentials needed to reach the
// Conversions API are present.
func (c Config) Validate() error {
	if c.PixelID == "" || c.AccessToken == "" {
		return ErrMissingCredentials
	}
	return nil
}

// Addr is the listen address derived from Port.
func (c Config) Addr() string {
	return ":" + c.Port
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type rawConfig struct {
	Environment               string        `env:"BEACON_ENVIRONMENT"`
	Port                      string        `env:"PORT" envDefault:"8080"`
	SentryDSN                 string        `env:"SENTRY_DSN"`
	UpstreamBaseURL           string        `env:"UPSTREAM_BASE_URL"`
	UpstreamAPIKey            string        `env:"UPSTREAM_API_KEY"`
	CacheTTL                  time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	UpstreamRequestsPerSecond float64       `env:"UPSTREAM_REQUESTS_PER_SECOND" envDefault:"10"`
	UpstreamBurst             int           `env:"UPSTREAM_BURST" envDefault:"20"`
	OTelEnabled               bool          `env:"OTEL_ENABLED" envDefault:"false"`
	AllowedOriginSuffixes     []string      `env:"ALLOWED_ORIGIN_SUFFIXES" envSeparator:","`
	AdminAPIKey               string        `env:"ADMIN_API_KEY"`
}

type Config struct {
	port                      string
	sentryDSN                 string
	upstreamBaseURL           string
	upstreamAPIKey            string
	cacheTTL                  time.Duration
	upstreamRequestsPerSecond float64
	upstreamBurst             int
	otelEnabled               bool
	allowedOriginSuffixes     []string
	adminAPIKey               string
	env                       environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) UpstreamBaseURL() string {
	return c.upstreamBaseURL
}

func (c *Config) UpstreamAPIKey() string {
	return c.upstreamAPIKey
}

// CacheTTL is how long a successful upstream response is served from memory
func (c *Config) CacheTTL() time.Duration {
	return c.cacheTTL
}

func (c *Config) UpstreamRequestsPerSecond() float64 {
	return c.upstreamRequestsPerSecond
}

func (c *Config) UpstreamBurst() int {
	return c.upstreamBurst
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

// AllowedOriginSuffixes are the domains (and their subdomains) browsers may call us from
func (c *Config) AllowedOriginSuffixes() []string {
	return c.allowedOriginSuffixes
}

// AdminAPIKey guards the cache admin routes. When empty, every admin request is rejected.
func (c *Config) AdminAPIKey() string {
	return c.adminAPIKey
}

func (c *Config) Environment() string {
	return string(c.env)
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, upstream: %s, cacheTTL: %s, upstreamRPS: %g, upstreamBurst: %d, otel: %t, ...}",
		string(c.env), c.port, c.upstreamBaseURL, c.cacheTTL, c.upstreamRequestsPerSecond, c.upstreamBurst, c.otelEnabled,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key string, value any) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%v)", ErrInvalidValue, key, value)
	}

	raw, err := env.ParseAs[rawConfig]()
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	var parsedEnv environment
	switch raw.Environment {
	case "":
		return missingKey("BEACON_ENVIRONMENT")
	case "production":
		parsedEnv = production
	case "staging":
		parsedEnv = staging
	case "development":
		parsedEnv = development
	default:
		return invalidValue("BEACON_ENVIRONMENT", raw.Environment)
	}

	if parsedEnv == production || parsedEnv == staging {
		if raw.SentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
		if raw.UpstreamBaseURL == "" {
			return missingKey("UPSTREAM_BASE_URL")
		}
		if raw.UpstreamAPIKey == "" {
			return missingKey("UPSTREAM_API_KEY")
		}
		if raw.AdminAPIKey == "" {
			return missingKey("ADMIN_API_KEY")
		}
	}

	if raw.UpstreamBaseURL != "" {
		parsed, err := url.Parse(raw.UpstreamBaseURL)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return invalidValue("UPSTREAM_BASE_URL", raw.UpstreamBaseURL)
		}
	}
	if raw.CacheTTL < 0 {
		return invalidValue("CACHE_TTL", raw.CacheTTL)
	}
	if raw.UpstreamRequestsPerSecond <= 0 {
		return invalidValue("UPSTREAM_REQUESTS_PER_SECOND", raw.UpstreamRequestsPerSecond)
	}
	if raw.UpstreamBurst <= 0 {
		return invalidValue("UPSTREAM_BURST", raw.UpstreamBurst)
	}

	return Config{
		port:                      raw.Port,
		sentryDSN:                 raw.SentryDSN,
		upstreamBaseURL:           raw.UpstreamBaseURL,
		upstreamAPIKey:            raw.UpstreamAPIKey,
		cacheTTL:                  raw.CacheTTL,
		upstreamRequestsPerSecond: raw.UpstreamRequestsPerSecond,
		upstreamBurst:             raw.UpstreamBurst,
		otelEnabled:               raw.OTelEnabled,
		allowedOriginSuffixes:     raw.AllowedOriginSuffixes,
		adminAPIKey:               raw.AdminAPIKey,
		env:                       parsedEnv,
	}, nil
}

// NewDevelopmentConfig returns the configuration used by local tools and tests
func NewDevelopmentConfig() Config {
	return Config{
		port:                      "8080",
		cacheTTL:                  30 * time.Second,
		upstreamRequestsPerSecond: 10,
		upstreamBurst:             20,
		env:                       development,
	}
}

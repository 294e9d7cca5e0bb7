// Package config loads the server and command line settings from the
// environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/goliatone/r6-tools/auth"
	"github.com/goliatone/r6-tools/provider/gotrue"
)

// Config holds every setting read from the environment
type Config struct {
	ServiceURL       string        `env:"SERVICE_URL"`
	ServicePublicKey string        `env:"SERVICE_PUBLIC_KEY"`
	JWKSURL          string        `env:"SERVICE_JWKS_URL"`
	JWTSecret        string        `env:"SERVICE_JWT_SECRET"`
	RequestTimeout   time.Duration `env:"SERVICE_REQUEST_TIMEOUT" envDefault:"10s"`

	HTTPAddr     string `env:"R6_HTTP_ADDR" envDefault:":8080"`
	MetricsAddr  string `env:"R6_METRICS_ADDR" envDefault:":9090"`
	PublicURL    string `env:"R6_PUBLIC_URL" envDefault:"http://localhost:8080"`
	CookieSecure bool   `env:"R6_COOKIE_SECURE" envDefault:"true"`
	CSRFKey      string `env:"R6_CSRF_KEY"`
	SessionDB    string `env:"R6_SESSION_DB"`
	Debug        bool   `env:"R6_DEBUG"`
	TraceStdout  bool   `env:"R6_TRACE_STDOUT"`
}

// Load reads the process environment
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads vars instead of the process environment
func LoadFrom(vars map[string]string) (*Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.ServiceURL = strings.TrimSpace(cfg.ServiceURL)
	cfg.ServicePublicKey = strings.TrimSpace(cfg.ServicePublicKey)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate returns *auth.ConfigurationError when the service coordinates
// are missing
func (c *Config) Validate() error {
	return c.ClientConfig().Validate()
}

// ClientConfig returns the session client settings
func (c *Config) ClientConfig() auth.ClientConfig {
	return auth.ClientConfig{
		URL:            c.ServiceURL,
		PublicKey:      c.ServicePublicKey,
		JWKSURL:        c.JWKSURL,
		RequestTimeout: c.RequestTimeout,
	}
}

// BackendConfig returns the auth service backend settings
func (c *Config) BackendConfig() gotrue.Config {
	return gotrue.FromClientConfig(c.ClientConfig())
}

// CookieOptions returns the session cookie attributes
func (c *Config) CookieOptions() auth.CookieOptions {
	return auth.CookieOptions{
		Secure: c.CookieSecure,
		MaxAge: auth.DefaultCookieMaxAge,
	}
}

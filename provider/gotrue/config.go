package gotrue

import (
	"net/http"
	"strings"

	"github.com/goliatone/r6-tools/auth"
)

// Config holds the service coordinates
type Config struct {
	// URL is the project URL, e.g. "https://abcd.supabase.co"
	URL string

	// PublicKey is the anonymous API key
	PublicKey string

	// AuthPath is appended to URL to reach the auth API.
	// Default: "/auth/v1".
	AuthPath string

	// Transport overrides the HTTP transport (optional).
	Transport http.RoundTripper
}

// FromClientConfig builds a Config from the session client settings
func FromClientConfig(cfg auth.ClientConfig) Config {
	return Config{
		URL:       cfg.URL,
		PublicKey: cfg.PublicKey,
	}
}

func (c Config) endpoint() string {
	path := c.AuthPath
	if path == "" {
		path = "/auth/v1"
	}
	return strings.TrimRight(c.URL, "/") + "/" + strings.Trim(path, "/")
}

func (c Config) transport() http.RoundTripper {
	if c.Transport != nil {
		return c.Transport
	}
	return http.DefaultTransport
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/r6-tools/auth"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SERVICE_URL":        "https://r6tools.supabase.co",
		"SERVICE_PUBLIC_KEY": "anon-key",
	})
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
	assert.Equal(t, "http://localhost:8080", cfg.PublicURL)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.CookieSecure)
	assert.False(t, cfg.Debug)

	client := cfg.ClientConfig()
	assert.Equal(t, "https://r6tools.supabase.co", client.URL)
	assert.Equal(t, "anon-key", client.PublicKey)
	assert.Equal(t, "sb-r6tools-auth-token", client.GetStorageKey())

	assert.Equal(t, "anon-key", cfg.BackendConfig().PublicKey)
	assert.True(t, cfg.CookieOptions().Secure)
}

func TestLoadFromOverrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"SERVICE_URL":             "http://127.0.0.1:54321",
		"SERVICE_PUBLIC_KEY":      "anon-key",
		"SERVICE_REQUEST_TIMEOUT": "3s",
		"R6_HTTP_ADDR":            ":3000",
		"R6_COOKIE_SECURE":        "false",
		"R6_DEBUG":                "true",
	})
	require.NoError(t, err)

	assert.Equal(t, 3*time.Second, cfg.RequestTimeout)
	assert.Equal(t, ":3000", cfg.HTTPAddr)
	assert.False(t, cfg.CookieSecure)
	assert.True(t, cfg.Debug)
}

func TestLoadFromMissingService(t *testing.T) {
	tests := []struct {
		name    string
		vars    map[string]string
		missing []string
	}{
		{"nothing set", map[string]string{}, []string{"SERVICE_URL", "SERVICE_PUBLIC_KEY"}},
		{"blank key", map[string]string{"SERVICE_URL": "https://r6tools.supabase.co", "SERVICE_PUBLIC_KEY": "   "}, []string{"SERVICE_PUBLIC_KEY"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.vars)
			require.Error(t, err)

			var cfgErr *auth.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.missing, cfgErr.Missing)
		})
	}
}

func TestLoadFromInvalidValue(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"SERVICE_URL":             "https://r6tools.supabase.co",
		"SERVICE_PUBLIC_KEY":      "anon-key",
		"SERVICE_REQUEST_TIMEOUT": "soon",
	})
	require.Error(t, err)
	assert.False(t, auth.IsConfigurationError(err))
}

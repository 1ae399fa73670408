package config

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, ":9090", cfg.OpsAddr)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "http://localhost:8000", cfg.Upstream.BaseURL)
	assert.Equal(t, []string{"acknowledge"}, cfg.Upstream.CredentialBypass)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
	assert.Equal(t, []Duration{
		Duration(100 * time.Millisecond),
		Duration(500 * time.Millisecond),
		Duration(2 * time.Second),
	}, cfg.Retry.Schedule)
	assert.Equal(t, []int{502, 503, 504}, cfg.Retry.TransientStatuses)
	assert.False(t, cfg.IsProduction())
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvListenAddr, ":18080")
	t.Setenv(EnvEnvironment, "production")
	t.Setenv(EnvUpstreamURL, "https://incidents.internal:8443")
	t.Setenv(EnvLogLevel, "debug")

	cfg := Default()
	cfg.ApplyEnv()

	assert.Equal(t, ":18080", cfg.ListenAddr)
	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "https://incidents.internal:8443", cfg.Upstream.BaseURL)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.IsProduction())
}

func TestAPIKeyPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		primary  string
		fallback string
		expected string
	}{
		{
			name:     "primary wins",
			primary:  "primary-key",
			fallback: "legacy-key",
			expected: "primary-key",
		},
		{
			name:     "fallback when primary unset",
			primary:  "",
			fallback: "legacy-key",
			expected: "legacy-key",
		},
		{
			name:     "both unset yields empty",
			primary:  "",
			fallback: "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvAPIKey, tt.primary)
			t.Setenv(EnvAPIKeyFallback, tt.fallback)

			cfg := Default()
			cfg.ApplyEnv()

			assert.Equal(t, tt.expected, cfg.Upstream.APIKey)
		})
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.yaml")

	content := `
listenAddr: ":7070"
upstream:
  baseURL: "http://backend:9000"
  credentialBypass:
    - "acknowledge"
    - "resolve"
retry:
  maxRetries: 1
  schedule:
    - "50ms"
circuitBreaker:
  enabled: true
  threshold: 10
  timeout: "1m"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.ListenAddr)
	assert.Equal(t, "http://backend:9000", cfg.Upstream.BaseURL)
	assert.Equal(t, []string{"acknowledge", "resolve"}, cfg.Upstream.CredentialBypass)
	assert.Equal(t, 1, cfg.Retry.MaxRetries)
	assert.Equal(t, []Duration{Duration(50 * time.Millisecond)}, cfg.Retry.Schedule)

	require.NotNil(t, cfg.CircuitBreaker)
	assert.True(t, cfg.CircuitBreaker.Enabled)
	assert.Equal(t, 10, cfg.CircuitBreaker.Threshold)
	assert.Equal(t, time.Minute, cfg.CircuitBreaker.Timeout.Duration())

	// Untouched keys keep their defaults.
	assert.Equal(t, ":9090", cfg.OpsAddr)
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listenAddr: ":7070"`), 0o600))

	t.Setenv(EnvListenAddr, ":6060")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":6060", cfg.ListenAddr)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`listenAdr: ":7070"`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load("/nonexistent/forwarder.yaml")
	assert.Error(t, err)
}

func TestLoadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "forwarder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty listen address",
			mutate:  func(c *Config) { c.ListenAddr = "" },
			wantErr: true,
		},
		{
			name:    "upstream without scheme",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "localhost:8000" },
			wantErr: true,
		},
		{
			name:    "upstream with bad scheme",
			mutate:  func(c *Config) { c.Upstream.BaseURL = "ftp://backend" },
			wantErr: true,
		},
		{
			name:    "negative max retries",
			mutate:  func(c *Config) { c.Retry.MaxRetries = -1 },
			wantErr: true,
		},
		{
			name:    "transient status out of range",
			mutate:  func(c *Config) { c.Retry.TransientStatuses = []int{6000} },
			wantErr: true,
		},
		{
			name: "enabled rate limit without rps",
			mutate: func(c *Config) {
				c.RateLimit = &RateLimitConfig{Enabled: true, Burst: 10}
			},
			wantErr: true,
		},
		{
			name: "enabled circuit breaker without threshold",
			mutate: func(c *Config) {
				c.CircuitBreaker = &CircuitBreakerConfig{Enabled: true, Timeout: Duration(time.Second)}
			},
			wantErr: true,
		},
		{
			name: "enabled tracing without endpoint",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "disabled sections are not validated",
			mutate: func(c *Config) {
				c.RateLimit = &RateLimitConfig{Enabled: false}
				c.CircuitBreaker = &CircuitBreakerConfig{Enabled: false}
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Retry.MaxRetries = 2
	cfg.Retry.Schedule = []Duration{Duration(10 * time.Millisecond)}
	cfg.Retry.TransientStatuses = []int{http.StatusTooManyRequests}

	p := cfg.RetryPolicy()

	assert.Equal(t, 2, p.MaxRetries)
	assert.Equal(t, 10*time.Millisecond, p.Delay(0))
	assert.True(t, p.IsTransient(http.StatusTooManyRequests))
	assert.False(t, p.IsTransient(http.StatusBadGateway))
}

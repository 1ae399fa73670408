// Package config provides configuration loading for the forwarder:
// built-in defaults, an optional YAML overlay, and environment
// variables, applied in that order so the environment always wins.
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/vyrodovalexey/incidentgw/internal/retry"
	"github.com/vyrodovalexey/incidentgw/internal/util"
)

// Environment variable names.
const (
	EnvListenAddr  = "FORWARDER_LISTEN_ADDR"
	EnvOpsAddr     = "FORWARDER_OPS_ADDR"
	EnvEnvironment = "FORWARDER_ENV"
	EnvUpstreamURL = "FORWARDER_UPSTREAM_URL"
	EnvConfigPath  = "FORWARDER_CONFIG_PATH"
	EnvLogLevel    = "FORWARDER_LOG_LEVEL"
	EnvLogFormat   = "FORWARDER_LOG_FORMAT"

	// EnvAPIKey is the primary credential variable; EnvAPIKeyFallback is
	// honored for older deployments. The first non-empty value wins.
	EnvAPIKey         = "INCIDENT_API_KEY"
	EnvAPIKeyFallback = "BACKEND_API_KEY"
)

// Default configuration values.
const (
	DefaultListenAddr      = ":8080"
	DefaultOpsAddr         = ":9090"
	DefaultEnvironment     = "development"
	DefaultUpstreamURL     = "http://localhost:8000"
	DefaultAttemptTimeout  = 30 * time.Second
	DefaultShutdownTimeout = 15 * time.Second
)

// Config is the top-level forwarder configuration.
type Config struct {
	// ListenAddr is the address the forwarding listener binds to.
	ListenAddr string `yaml:"listenAddr" json:"listenAddr"`

	// OpsAddr is the address the operational listener (metrics, health)
	// binds to.
	OpsAddr string `yaml:"opsAddr" json:"opsAddr"`

	// Environment names the deployment environment. In "production" the
	// failure reports omit upstream diagnostics.
	Environment string `yaml:"environment" json:"environment"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `yaml:"shutdownTimeout" json:"shutdownTimeout"`

	Upstream       UpstreamConfig        `yaml:"upstream" json:"upstream"`
	Retry          RetryConfig           `yaml:"retry" json:"retry"`
	RateLimit      *RateLimitConfig      `yaml:"rateLimit,omitempty" json:"rateLimit,omitempty"`
	CircuitBreaker *CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	Tracing        TracingConfig         `yaml:"tracing" json:"tracing"`
	Logging        LoggingConfig         `yaml:"logging" json:"logging"`
}

// UpstreamConfig configures the backend API the forwarder dispatches to.
type UpstreamConfig struct {
	// BaseURL is the upstream base URL, without the API prefix.
	BaseURL string `yaml:"baseURL" json:"baseURL"`

	// APIKey is the shared credential. Never read from the YAML overlay;
	// it comes from the environment only.
	APIKey string `yaml:"-" json:"-"`

	// CredentialBypass lists path segments whose endpoints carry their
	// own embedded token and must not receive the shared credential.
	CredentialBypass []string `yaml:"credentialBypass" json:"credentialBypass"`

	// AttemptTimeout bounds each individual dispatch attempt.
	AttemptTimeout Duration `yaml:"attemptTimeout" json:"attemptTimeout"`
}

// RetryConfig configures the retry policy for upstream dispatches.
type RetryConfig struct {
	// MaxRetries is the number of retries beyond the first attempt.
	MaxRetries int `yaml:"maxRetries" json:"maxRetries"`

	// Schedule is the fixed inter-attempt delay sequence.
	Schedule []Duration `yaml:"schedule" json:"schedule"`

	// TransientStatuses are upstream status codes treated as transient.
	TransientStatuses []int `yaml:"transientStatuses" json:"transientStatuses"`
}

// RateLimitConfig configures inbound rate limiting. Disabled unless
// explicitly enabled.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled" json:"enabled"`
	RequestsPerSecond int  `yaml:"requestsPerSecond" json:"requestsPerSecond"`
	Burst             int  `yaml:"burst" json:"burst"`
	PerClient         bool `yaml:"perClient" json:"perClient"`
}

// CircuitBreakerConfig configures the upstream circuit breaker.
// Disabled unless explicitly enabled.
type CircuitBreakerConfig struct {
	Enabled   bool     `yaml:"enabled" json:"enabled"`
	Threshold int      `yaml:"threshold" json:"threshold"`
	Timeout   Duration `yaml:"timeout" json:"timeout"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRate float64 `yaml:"samplingRate" json:"samplingRate"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns a Config populated with default values.
func Default() *Config {
	return &Config{
		ListenAddr:      DefaultListenAddr,
		OpsAddr:         DefaultOpsAddr,
		Environment:     DefaultEnvironment,
		ShutdownTimeout: Duration(DefaultShutdownTimeout),
		Upstream: UpstreamConfig{
			BaseURL:          DefaultUpstreamURL,
			CredentialBypass: []string{"acknowledge"},
			AttemptTimeout:   Duration(DefaultAttemptTimeout),
		},
		Retry: RetryConfig{
			MaxRetries: retry.DefaultMaxRetries,
			Schedule: []Duration{
				Duration(100 * time.Millisecond),
				Duration(500 * time.Millisecond),
				Duration(2 * time.Second),
			},
			TransientStatuses: append([]int(nil), retry.DefaultTransientStatuses...),
		},
		Tracing: TracingConfig{
			SamplingRate: 1.0,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML
// overlay at path (skipped when path is empty), then the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overlays environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvListenAddr); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(EnvOpsAddr); v != "" {
		c.OpsAddr = v
	}
	if v := os.Getenv(EnvEnvironment); v != "" {
		c.Environment = v
	}
	if v := os.Getenv(EnvUpstreamURL); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}

	c.Upstream.APIKey = firstNonEmpty(
		os.Getenv(EnvAPIKey),
		os.Getenv(EnvAPIKeyFallback),
	)
}

// firstNonEmpty returns the first non-empty string.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return util.NewConfigError("listenAddr", "listen address must not be empty")
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return util.NewConfigErrorWithCause("upstream.baseURL", "invalid upstream URL", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return util.NewConfigError("upstream.baseURL", "upstream URL scheme must be http or https")
	}
	if u.Host == "" {
		return util.NewConfigError("upstream.baseURL", "upstream URL must include a host")
	}

	if c.Retry.MaxRetries < 0 {
		return util.NewConfigError("retry.maxRetries", "max retries must not be negative")
	}
	for i, d := range c.Retry.Schedule {
		if d.Duration() < 0 {
			return util.NewConfigError("retry.schedule", "delay at index "+strconv.Itoa(i)+" must not be negative")
		}
	}
	for _, code := range c.Retry.TransientStatuses {
		if code < 100 || code > 599 {
			return util.NewConfigError("retry.transientStatuses", "status code out of range: "+strconv.Itoa(code))
		}
	}

	if c.RateLimit != nil && c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			return util.NewConfigError("rateLimit.requestsPerSecond", "must be positive when rate limiting is enabled")
		}
		if c.RateLimit.Burst <= 0 {
			return util.NewConfigError("rateLimit.burst", "must be positive when rate limiting is enabled")
		}
	}

	if c.CircuitBreaker != nil && c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.Threshold <= 0 {
			return util.NewConfigError("circuitBreaker.threshold", "must be positive when the circuit breaker is enabled")
		}
		if c.CircuitBreaker.Timeout.Duration() <= 0 {
			return util.NewConfigError("circuitBreaker.timeout", "must be positive when the circuit breaker is enabled")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.OTLPEndpoint == "" {
			return util.NewConfigError("tracing.otlpEndpoint", "must be set when tracing is enabled")
		}
		if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
			return util.NewConfigError("tracing.samplingRate", "must be between 0 and 1")
		}
	}

	return nil
}

// IsProduction reports whether the forwarder runs in production, where
// failure reports omit upstream diagnostics.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RetryPolicy builds the retry policy from the retry configuration.
func (c *Config) RetryPolicy() *retry.Policy {
	schedule := make([]time.Duration, 0, len(c.Retry.Schedule))
	for _, d := range c.Retry.Schedule {
		schedule = append(schedule, d.Duration())
	}

	p := &retry.Policy{
		MaxRetries:        c.Retry.MaxRetries,
		Schedule:          schedule,
		TransientStatuses: append([]int(nil), c.Retry.TransientStatuses...),
	}
	p.Validate()
	return p
}

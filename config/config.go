// Package config provides configuration management for the mdconvert server.
// It covers the HTTP server, the markdown conversion rules, CORS, rate limiting,
// the admission queue, logging and route definitions.
package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable that overrides Config.Environment.
const EnvVar = "APP_ENV"

const (
	// EnvironmentDevelopment exposes internal error details in 500 responses.
	EnvironmentDevelopment = "development"

	// EnvironmentProduction hides internal error details.
	EnvironmentProduction = "production"
)

// DefaultMaxTextLength is the largest accepted input, in characters.
const DefaultMaxTextLength = 50000

// Config represents the complete server configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	Server      ServerConfig    `yaml:"server"`
	Convert     ConvertConfig   `yaml:"convert"`
	CORS        CORSConfig      `yaml:"cors"`
	RateLimit   RateLimitConfig `yaml:"ratelimit"`
	Queue       QueueConfig     `yaml:"queue"`
	Logging     LoggingConfig   `yaml:"logging"`
	Routes      []RouteConfig   `yaml:"routes"`
}

// ServerConfig holds server-specific configuration for the HTTP server.
type ServerConfig struct {
	// Port specifies the HTTP server port (default: 8080)
	Port int `yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body (default: 10s)
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	// (default: 10s)
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// MaxHeaderBytes controls the maximum number of bytes the server will
	// read parsing the request header's keys and values (default: 1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// ShutdownTimeout specifies how long to wait for the server to shutdown
	// gracefully before forcing termination (default: 10s)
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TrustProxyHeaders takes the client address from X-Forwarded-For,
	// X-Real-IP or True-Client-IP. Enable it only behind a proxy that
	// overwrites these headers (default: false)
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`
}

// CORSConfig holds the headers sent on every response.
type CORSConfig struct {
	AllowOrigin  string   `yaml:"allow_origin"`
	AllowHeaders []string `yaml:"allow_headers"`
	AllowMethods []string `yaml:"allow_methods"`
}

// RateLimitConfig controls the per-client request limiter.
type RateLimitConfig struct {
	// Enabled turns the limiter on. When false every request is allowed.
	Enabled bool `yaml:"enabled"`

	// Requests is the number of requests refilled per Window.
	Requests int `yaml:"requests"`

	// Window is the refill period for Requests.
	Window time.Duration `yaml:"window"`

	// Burst is the bucket size.
	Burst int `yaml:"burst"`

	// IdleTTL is how long an idle client keeps its bucket before eviction.
	IdleTTL time.Duration `yaml:"idle_ttl"`
}

// QueueConfig defines the configuration for the admission queue middleware.
type QueueConfig struct {
	// Enabled determines if the queue middleware is active
	Enabled bool `yaml:"enabled"`

	// MaxSize is the maximum number of conversions in flight
	MaxSize int64 `yaml:"max_size"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level sets logging verbosity: debug, info, warn, error
	Level string `yaml:"level"`

	// Format specifies log output format: json or text
	Format string `yaml:"format"`
}

// RouteConfig holds route-specific configuration.
type RouteConfig struct {
	// Path is the URL path to match
	Path string `yaml:"path"`

	// Handler specifies which handler to use for this route
	Handler string `yaml:"handler"`

	// Middleware specifies the route-specific middleware
	Middleware []string `yaml:"middleware,omitempty"`
}

// IsDevelopment reports whether internal error details may be returned to clients.
func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvironmentDevelopment
}

// DefaultConfig returns the configuration used when no file overrides it.
func DefaultConfig() *Config {
	return &Config{
		Environment: EnvironmentProduction,
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 10 * time.Second,
		},
		Convert: DefaultConvertConfig(),
		CORS: CORSConfig{
			AllowOrigin:  "*",
			AllowHeaders: []string{"Content-Type"},
			AllowMethods: []string{"POST", "OPTIONS"},
		},
		RateLimit: RateLimitConfig{
			Enabled:  true,
			Requests: 30,
			Window:   time.Minute,
			Burst:    10,
			IdleTTL:  10 * time.Minute,
		},
		Queue: QueueConfig{
			Enabled: false,
			MaxSize: 100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Routes: []RouteConfig{
			{
				Path:       "/convert",
				Handler:    "convert",
				Middleware: []string{"ratelimit", "queue"},
			},
			{
				Path:       "/.netlify/functions/convert",
				Handler:    "convert",
				Middleware: []string{"ratelimit", "queue"},
			},
			{
				Path:    "/health",
				Handler: "health",
			},
			{
				Path:    "/metrics",
				Handler: "metrics",
			},
		},
	}
}

// LoadFile loads configuration from a YAML file
func LoadFile(filename string) (*Config, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// expandEnvVars resolves ${VAR} and ${VAR:-default} references in s.
// Unset variables without a default expand to the empty string.
func expandEnvVars(s string) (string, error) {
	if strings.Count(s, "${") > strings.Count(s, "}") {
		return "", fmt.Errorf("unterminated variable reference")
	}

	result := os.Expand(s, func(key string) string {
		if i := strings.Index(key, ":-"); i >= 0 {
			if val := os.Getenv(key[:i]); val != "" {
				return val
			}
			return key[i+2:]
		}
		return os.Getenv(key)
	})

	return result, nil
}

// Load loads configuration from an io.Reader
func Load(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expandedData, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expand environment variables: %w", err)
	}

	// Start with defaults
	config := DefaultConfig()

	// An empty document leaves the defaults untouched
	dec := yaml.NewDecoder(strings.NewReader(expandedData))
	if err := dec.Decode(config); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	config.ApplyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return config, nil
}

// ApplyEnv overrides file settings with process environment variables.
func (c *Config) ApplyEnv() {
	if env := os.Getenv(EnvVar); env != "" {
		c.Environment = env
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvironmentDevelopment, EnvironmentProduction:
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	// Server validation
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("negative read timeout: %v", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("negative write timeout: %v", c.Server.WriteTimeout)
	}
	if c.Server.MaxHeaderBytes < 0 {
		return fmt.Errorf("negative max header bytes: %d", c.Server.MaxHeaderBytes)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("negative shutdown timeout: %v", c.Server.ShutdownTimeout)
	}

	if err := c.Convert.Validate(); err != nil {
		return err
	}

	if c.CORS.AllowOrigin == "" {
		return fmt.Errorf("empty CORS allow_origin")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Requests <= 0 {
			return fmt.Errorf("rate limit requests must be positive: %d", c.RateLimit.Requests)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("rate limit window must be positive: %v", c.RateLimit.Window)
		}
		if c.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate limit burst must be positive: %d", c.RateLimit.Burst)
		}
	}

	if c.Queue.Enabled && c.Queue.MaxSize <= 0 {
		return fmt.Errorf("queue max_size must be positive: %d", c.Queue.MaxSize)
	}

	// Logging validation
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Route validation
	for i, route := range c.Routes {
		if route.Path == "" {
			return fmt.Errorf("empty path in route %d", i)
		}
		if !strings.HasPrefix(route.Path, "/") {
			return fmt.Errorf("route %d path must start with '/': %s", i, route.Path)
		}
		if route.Handler == "" {
			return fmt.Errorf("empty handler in route %d", i)
		}
	}

	return nil
}

// compilePatterns compiles every source pattern, reporting the first failure.
func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid source pattern %d: %w", i, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

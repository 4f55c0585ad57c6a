package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestLoadValidConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	yamlConfig := `
environment: development

server:
  port: 9090
  read_timeout: 45s
  write_timeout: 45s
  max_header_bytes: 2097152
  shutdown_timeout: 45s

convert:
  max_text_length: 1000
  reset_on_heading: false
  source_patterns:
    - '\[\d+\]'

cors:
  allow_origin: https://example.github.io

ratelimit:
  enabled: true
  requests: 5
  window: 10s
  burst: 2

logging:
  level: debug
  format: text

routes:
  - path: /convert
    handler: convert
    middleware: [ratelimit]
  - path: /health
    handler: health
`

	config, err := Load(strings.NewReader(yamlConfig))
	if err != nil {
		t.Fatalf("Failed to load valid config: %v", err)
	}

	if !config.IsDevelopment() {
		t.Errorf("unexpected environment: got %s, want %s", config.Environment, EnvironmentDevelopment)
	}

	// Check server config
	if config.Server.Port != 9090 {
		t.Errorf("unexpected port: got %d, want %d", config.Server.Port, 9090)
	}
	if config.Server.ReadTimeout != 45*time.Second {
		t.Errorf("unexpected read timeout: got %v, want %v", config.Server.ReadTimeout, 45*time.Second)
	}

	// Check convert config
	if config.Convert.MaxTextLength != 1000 {
		t.Errorf("unexpected max text length: got %d, want %d", config.Convert.MaxTextLength, 1000)
	}
	if config.Convert.ResetOnHeading {
		t.Error("expected reset_on_heading to be false")
	}
	if len(config.Convert.SourcePatterns) != 1 || config.Convert.SourcePatterns[0] != `\[\d+\]` {
		t.Errorf("unexpected source patterns: %v", config.Convert.SourcePatterns)
	}
	if config.Convert.MaxBodyBytes != 1<<20 {
		t.Errorf("unset max body bytes should keep default, got %d", config.Convert.MaxBodyBytes)
	}

	// Check CORS config
	if config.CORS.AllowOrigin != "https://example.github.io" {
		t.Errorf("unexpected allow origin: got %s", config.CORS.AllowOrigin)
	}

	// Check rate limit config
	if config.RateLimit.Requests != 5 || config.RateLimit.Window != 10*time.Second || config.RateLimit.Burst != 2 {
		t.Errorf("unexpected rate limit config: %+v", config.RateLimit)
	}

	// Check logging config
	if config.Logging.Level != "debug" {
		t.Errorf("unexpected log level: got %s, want %s", config.Logging.Level, "debug")
	}
	if config.Logging.Format != "text" {
		t.Errorf("unexpected log format: got %s, want %s", config.Logging.Format, "text")
	}

	// Check routes
	if len(config.Routes) != 2 {
		t.Errorf("unexpected number of routes: got %d, want %d", len(config.Routes), 2)
	}
}

func TestLoadEmptyConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	config, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Failed to load empty config: %v", err)
	}
	if config.Convert.MaxTextLength != DefaultMaxTextLength {
		t.Errorf("unexpected max text length: got %d, want %d", config.Convert.MaxTextLength, DefaultMaxTextLength)
	}
}

func TestLoadInvalidConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name: "invalid port",
			config: `
server:
  port: -1
`,
			want: "invalid port",
		},
		{
			name: "invalid environment",
			config: `
environment: staging
`,
			want: "invalid environment",
		},
		{
			name: "invalid log level",
			config: `
logging:
  level: invalid
`,
			want: "invalid log level",
		},
		{
			name: "zero max text length",
			config: `
convert:
  max_text_length: 0
`,
			want: "max text length must be positive",
		},
		{
			name: "bad source pattern",
			config: `
convert:
  source_patterns: ['(unclosed']
`,
			want: "invalid source pattern 0",
		},
		{
			name: "rate limit without window",
			config: `
ratelimit:
  enabled: true
  window: 0s
`,
			want: "rate limit window must be positive",
		},
		{
			name: "queue without size",
			config: `
queue:
  enabled: true
  max_size: 0
`,
			want: "queue max_size must be positive",
		},
		{
			name: "empty route path",
			config: `
routes:
  - path: ""
    handler: convert
`,
			want: "empty path",
		},
		{
			name: "relative route path",
			config: `
routes:
  - path: convert
    handler: convert
`,
			want: "must start with '/'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(strings.NewReader(tt.config))
			if err == nil {
				t.Error("expected error, got nil")
			} else if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("unexpected error: got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if err := config.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}

	if config.IsDevelopment() {
		t.Error("default environment should be production")
	}

	// Check server defaults
	if config.Server.Port != 8080 {
		t.Errorf("unexpected default port: got %d, want %d", config.Server.Port, 8080)
	}

	// Check convert defaults
	if config.Convert.MaxTextLength != 50000 {
		t.Errorf("unexpected default max text length: got %d, want %d", config.Convert.MaxTextLength, 50000)
	}
	if len(config.Convert.SourcePatterns) != len(DefaultSourcePatterns) {
		t.Errorf("unexpected default source patterns: %v", config.Convert.SourcePatterns)
	}

	// Check CORS defaults
	if config.CORS.AllowOrigin != "*" {
		t.Errorf("unexpected default allow origin: got %s", config.CORS.AllowOrigin)
	}
	if strings.Join(config.CORS.AllowMethods, ", ") != "POST, OPTIONS" {
		t.Errorf("unexpected default allow methods: got %v", config.CORS.AllowMethods)
	}

	// Check logging defaults
	if config.Logging.Level != "info" {
		t.Errorf("unexpected default log level: got %s, want %s", config.Logging.Level, "info")
	}
	if config.Logging.Format != "json" {
		t.Errorf("unexpected default log format: got %s, want %s", config.Logging.Format, "json")
	}

	// Check default routes
	if len(config.Routes) != 4 {
		t.Errorf("unexpected number of default routes: got %d, want %d", len(config.Routes), 4)
	}
}

func TestDefaultConvertConfigIsolation(t *testing.T) {
	c := DefaultConvertConfig()
	c.SourcePatterns[0] = "changed"

	if DefaultSourcePatterns[0] == "changed" {
		t.Error("DefaultConvertConfig must not share the DefaultSourcePatterns slice")
	}
}

func TestEnvironmentVariableExpansion(t *testing.T) {
	testCases := []struct {
		name       string
		envVars    map[string]string
		yamlConfig string
		validate   func(*testing.T, *Config)
		wantErr    bool
	}{
		{
			name:    "basic env var expansion",
			envVars: map[string]string{"MDCONVERT_ORIGIN": "https://user.github.io"},
			yamlConfig: `
cors:
  allow_origin: ${MDCONVERT_ORIGIN}`,
			validate: func(t *testing.T, c *Config) {
				if c.CORS.AllowOrigin != "https://user.github.io" {
					t.Errorf("origin not expanded correctly, got %s", c.CORS.AllowOrigin)
				}
			},
		},
		{
			name:    "default value syntax",
			envVars: map[string]string{"MDCONVERT_PORT": ""},
			yamlConfig: `
server:
  port: ${MDCONVERT_PORT:-9191}`,
			validate: func(t *testing.T, c *Config) {
				if c.Server.Port != 9191 {
					t.Errorf("default value not applied, got %d", c.Server.Port)
				}
			},
		},
		{
			name:    "environment override",
			envVars: map[string]string{EnvVar: EnvironmentDevelopment},
			yamlConfig: `
environment: production`,
			validate: func(t *testing.T, c *Config) {
				if !c.IsDevelopment() {
					t.Errorf("%s should override the file, got %s", EnvVar, c.Environment)
				}
			},
		},
		{
			name:    "unterminated reference",
			envVars: map[string]string{},
			yamlConfig: `
cors:
  allow_origin: ${MDCONVERT_ORIGIN`,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(EnvVar, "")
			for k, v := range tc.envVars {
				t.Setenv(k, v)
			}

			config, err := Load(strings.NewReader(tc.yamlConfig))
			if tc.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tc.validate(t, config)
		})
	}
}

func TestConfigWatcherReload(t *testing.T) {
	t.Setenv(EnvVar, "")

	configPath := filepath.Join(t.TempDir(), "mdconvert.yaml")
	if err := os.WriteFile(configPath, []byte("cors:\n  allow_origin: https://a.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewConfigWatcher(configPath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Close()

	if got := watcher.GetCurrentConfig().CORS.AllowOrigin; got != "https://a.example" {
		t.Fatalf("unexpected initial origin: %s", got)
	}

	updates := watcher.Subscribe()
	if err := os.WriteFile(configPath, []byte("cors:\n  allow_origin: https://b.example\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// A write can surface as several events, the first of which may see a
	// truncated file, so wait for the revision we wrote.
	timeout := time.After(5 * time.Second)
	for reloaded := false; !reloaded; {
		select {
		case cfg := <-updates:
			reloaded = cfg.CORS.AllowOrigin == "https://b.example"
		case <-timeout:
			t.Fatal("timed out waiting for config reload")
		}
	}

	if got := watcher.GetCurrentConfig().CORS.AllowOrigin; got != "https://b.example" {
		t.Errorf("current config not updated: %s", got)
	}
}

func TestConfigWatcherKeepsLastValidConfig(t *testing.T) {
	t.Setenv(EnvVar, "")

	configPath := filepath.Join(t.TempDir(), "mdconvert.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	watcher, err := NewConfigWatcher(configPath, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(configPath, []byte("server:\n  port: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	watcher.handleConfigChange()

	if got := watcher.GetCurrentConfig().Server.Port; got != 9000 {
		t.Errorf("invalid revision replaced config, port = %d", got)
	}
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("PORT", "")

	cfg, err := LoadFile(filepath.Join("..", "mdconvert.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Environment != EnvironmentProduction {
		t.Errorf("Environment = %q, want %q", cfg.Environment, EnvironmentProduction)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Convert.MaxTextLength != 50000 {
		t.Errorf("Convert.MaxTextLength = %d, want 50000", cfg.Convert.MaxTextLength)
	}
	if !cfg.RateLimit.Enabled {
		t.Error("RateLimit.Enabled = false, want true")
	}
	if len(cfg.Routes) != len(DefaultConfig().Routes) {
		t.Errorf("len(Routes) = %d, want %d", len(cfg.Routes), len(DefaultConfig().Routes))
	}
}

// Package config provides application configuration loading and hot reload
// of the resources directory.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/imgaoyue/squealy/internal/ir"
)

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Resources   ResourcesConfig    `yaml:"resources"`
	Auth        AuthConfig         `yaml:"auth"`
	CORS        CORSConfig         `yaml:"cors"`
	RateLimit   RateLimitConfig    `yaml:"rate_limit"`
	Logging     LoggingConfig      `yaml:"logging"`
	Metrics     MetricsConfig      `yaml:"metrics"`
	Docs        DocsConfig         `yaml:"docs"`
	Datasources []DatasourceConfig `yaml:"datasources"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// ResourcesConfig locates resource definitions.
type ResourcesConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"` // rebuild the catalog when files change
}

// AuthConfig configures JWT identity decoding.
// RS256 verifies with PublicKeyFile; HS256 verifies with Secret.
type AuthConfig struct {
	Algorithm     string `yaml:"algorithm"` // "RS256" or "HS256"
	PublicKeyFile string `yaml:"public_key_file,omitempty"`
	Secret        string `yaml:"secret,omitempty"`
}

// Enabled reports whether any verification key is configured.
func (a AuthConfig) Enabled() bool {
	return a.PublicKeyFile != "" || a.Secret != ""
}

// CORSConfig configures cross-origin headers.
type CORSConfig struct {
	Enabled        bool     `yaml:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "text" or "json"
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DocsConfig configures the OpenAPI document and Swagger UI.
type DocsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Title   string `yaml:"title"`
}

// DatasourceConfig is a datasource declared inline in the config file.
type DatasourceConfig struct {
	ID        string   `yaml:"id"`
	Driver    string   `yaml:"driver"`
	URL       string   `yaml:"url"`
	BindStyle string   `yaml:"bind_style,omitempty"`
	Init      []string `yaml:"init,omitempty"`
}

// Spec converts d to its compiled form.
func (d DatasourceConfig) Spec() ir.DatasourceSpec {
	return ir.DatasourceSpec{
		ID:        d.ID,
		Driver:    d.Driver,
		URL:       d.URL,
		BindStyle: d.BindStyle,
		Init:      d.Init,
		Source:    "config",
	}
}

// DefaultCORSHeaders is the header allow-list used when none is configured.
var DefaultCORSHeaders = []string{
	"accept",
	"accept-encoding",
	"authorization",
	"content-type",
	"dnt",
	"origin",
	"user-agent",
	"x-csrftoken",
	"x-requested-with",
}

// Load reads configuration from a YAML file.
// Environment variables in the file (${VAR}) are expanded, SQUEALY_*
// overrides applied, then defaults set and the result validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse is Load without the file read.
func Parse(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadWithFallback loads path when it is set and exists, otherwise builds
// the configuration from defaults and environment variables alone.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return finish(&Config{})
}

func finish(cfg *Config) (*Config, error) {
	applyEnvOverrides(cfg)
	setDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies SQUEALY_* environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SQUEALY_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SQUEALY_RESOURCES_DIR"); v != "" {
		cfg.Resources.Dir = v
	}
	if v := os.Getenv("SQUEALY_RESOURCES_WATCH"); v != "" {
		cfg.Resources.Watch = parseBool(v)
	}
	if v := os.Getenv("SQUEALY_JWT_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("SQUEALY_JWT_PUBLIC_KEY_FILE"); v != "" {
		cfg.Auth.PublicKeyFile = v
	}
	if v := os.Getenv("SQUEALY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SQUEALY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SQUEALY_RATELIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("SQUEALY_RATELIMIT_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimit.PerSecond = f
		}
	}
	if v := os.Getenv("SQUEALY_RATELIMIT_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RateLimit.Burst = n
		}
	}
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	if cfg.Resources.Dir == "" {
		cfg.Resources.Dir = "resources"
	}

	if cfg.Auth.Algorithm == "" {
		if cfg.Auth.Secret != "" && cfg.Auth.PublicKeyFile == "" {
			cfg.Auth.Algorithm = "HS256"
		} else {
			cfg.Auth.Algorithm = "RS256"
		}
	}
	cfg.Auth.Algorithm = strings.ToUpper(cfg.Auth.Algorithm)

	if len(cfg.CORS.AllowedMethods) == 0 {
		cfg.CORS.AllowedMethods = []string{"GET", "OPTIONS"}
	}
	if len(cfg.CORS.AllowedHeaders) == 0 {
		cfg.CORS.AllowedHeaders = DefaultCORSHeaders
	}

	if cfg.RateLimit.PerSecond == 0 {
		cfg.RateLimit.PerSecond = 10
	}
	if cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Docs.Title == "" {
		cfg.Docs.Title = "squealy"
	}
}

func validate(cfg *Config) error {
	var errs []error

	switch cfg.Auth.Algorithm {
	case "RS256":
		if cfg.Auth.Secret != "" && cfg.Auth.PublicKeyFile == "" {
			errs = append(errs, errors.New("auth.algorithm RS256 requires auth.public_key_file"))
		}
	case "HS256":
		if cfg.Auth.PublicKeyFile != "" && cfg.Auth.Secret == "" {
			errs = append(errs, errors.New("auth.algorithm HS256 requires auth.secret"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.algorithm must be RS256 or HS256, got %q", cfg.Auth.Algorithm))
	}

	if cfg.RateLimit.PerSecond < 0 || cfg.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate_limit.per_second and rate_limit.burst must be positive"))
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be debug, info, warn or error, got %q", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", cfg.Logging.Format))
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, fmt.Errorf("metrics.path must start with /, got %q", cfg.Metrics.Path))
	}

	seen := make(map[string]bool)
	for i, ds := range cfg.Datasources {
		if ds.ID == "" {
			errs = append(errs, fmt.Errorf("datasources[%d]: id is required", i))
			continue
		}
		if seen[ds.ID] {
			errs = append(errs, fmt.Errorf("datasources[%d]: duplicate id %q", i, ds.ID))
		}
		seen[ds.ID] = true
		if ds.Driver == "" {
			errs = append(errs, fmt.Errorf("datasources[%d]: driver is required", i))
		}
	}

	return errors.Join(errs...)
}

// DatasourceSpecs returns the inline datasources in compiled form.
func (c *Config) DatasourceSpecs() []ir.DatasourceSpec {
	specs := make([]ir.DatasourceSpec, len(c.Datasources))
	for i, d := range c.Datasources {
		specs[i] = d.Spec()
	}
	return specs
}

// MergeDatasources adds the inline datasources to defs. An id declared both
// inline and in a definition file is an error.
func (c *Config) MergeDatasources(defs *ir.Definitions) error {
	fromFiles := make(map[string]string, len(defs.Datasources))
	for _, ds := range defs.Datasources {
		fromFiles[ds.ID] = ds.Source
	}
	for _, ds := range c.DatasourceSpecs() {
		if src, ok := fromFiles[ds.ID]; ok {
			return fmt.Errorf("datasource %q is declared in both the config file and %s", ds.ID, src)
		}
		defs.Datasources = append(defs.Datasources, ds)
	}
	return nil
}

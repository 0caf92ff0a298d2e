// Copyright 2026 The fleep-mcp Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/fleepmcp/fleep-mcp/lib/secret"
)

// DefaultBaseURL is the public Fleep API root.
const DefaultBaseURL = "https://fleep.io/api"

// ConfigPathVariable names the environment variable consulted when no
// --config flag is given.
const ConfigPathVariable = "FLEEP_MCP_CONFIG"

// Config is the complete fleep-mcp configuration.
type Config struct {
	Fleep   FleepConfig   `yaml:"fleep" json:"fleep"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
}

// FleepConfig describes the remote account and transport.
type FleepConfig struct {
	// BaseURL is the API root. Default: https://fleep.io/api
	BaseURL string `yaml:"base_url" json:"base_url" env:"FLEEP_BASE_URL"`

	// Email is the account login. Required.
	Email string `yaml:"email" json:"email" env:"FLEEP_EMAIL"`

	// Password is only ever taken from the environment.
	Password string `yaml:"-" json:"-" env:"FLEEP_PASSWORD"`

	// PasswordFile is read when Password is empty, e.g. a mounted secret.
	PasswordFile string `yaml:"password_file" json:"password_file" env:"FLEEP_PASSWORD_FILE"`

	// Timeout bounds every HTTP request, including login. Default: 30s
	Timeout Duration `yaml:"timeout" json:"timeout" env:"FLEEP_TIMEOUT"`
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error. Default: info
	Level string `yaml:"level" json:"level" env:"FLEEP_MCP_LOG_LEVEL"`

	// Format is auto, text, or json. Default: auto
	Format string `yaml:"format" json:"format" env:"FLEEP_MCP_LOG_FORMAT"`
}

// MetricsConfig controls the Prometheus listener.
type MetricsConfig struct {
	// Address is a host:port for /metrics. Empty disables the listener.
	Address string `yaml:"address" json:"address" env:"FLEEP_MCP_METRICS_ADDRESS"`
}

// Duration is a time.Duration written as a Go duration string ("30s") in
// YAML, JSON, and environment variables.
type Duration time.Duration

// UnmarshalText parses a duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText formats the duration as a string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Default returns the configuration before any file or environment is
// applied. Credentials are deliberately empty.
func Default() *Config {
	return &Config{
		Fleep: FleepConfig{
			BaseURL: DefaultBaseURL,
			Timeout: Duration(30 * time.Second),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// LoadOptions names the optional files Load reads.
type LoadOptions struct {
	// ConfigPath overrides FLEEP_MCP_CONFIG. Empty means consult the
	// environment; if that is also empty no file is read.
	ConfigPath string

	// EnvFile is a dotenv file. Empty means ".env" in the working
	// directory, which may be absent. An explicitly named file must exist.
	EnvFile string
}

// Load builds a Config from defaults, the config file, the dotenv file,
// and the environment, in that order. The result is not validated; call
// Validate before use.
func Load(options LoadOptions) (*Config, error) {
	cfg := Default()

	path := options.ConfigPath
	if path == "" {
		path = os.Getenv(ConfigPathVariable)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotenv(options.EnvFile); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges a YAML or JSONC file into c, chosen by extension.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config: %s: unsupported extension (want .yaml, .yml, .json, or .jsonc)", path)
	}
	return nil
}

// loadDotenv applies a dotenv file without overriding variables that are
// already set.
func loadDotenv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("config: loading %s: %w", path, err)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables() {
	c.Fleep.PasswordFile = expandVars(c.Fleep.PasswordFile)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns from the
// environment. An unset or empty VAR yields the default, or "".
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Fleep.Email == "" {
		errs = append(errs, fmt.Errorf("fleep.email is required (set FLEEP_EMAIL)"))
	}
	if c.Fleep.Password == "" && c.Fleep.PasswordFile == "" {
		errs = append(errs, fmt.Errorf("a password is required (set FLEEP_PASSWORD or FLEEP_PASSWORD_FILE)"))
	}

	parsed, err := url.Parse(c.Fleep.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("fleep.base_url: %w", err))
	case parsed.Scheme != "http" && parsed.Scheme != "https":
		errs = append(errs, fmt.Errorf("fleep.base_url must be an http or https URL, got %q", c.Fleep.BaseURL))
	case parsed.Host == "":
		errs = append(errs, fmt.Errorf("fleep.base_url has no host: %q", c.Fleep.BaseURL))
	}

	if c.Fleep.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("fleep.timeout must be positive, got %s", time.Duration(c.Fleep.Timeout)))
	}

	return errors.Join(errs...)
}

// PasswordBuffer moves the password into protected memory and clears the
// plain-string copy from the config. The caller owns the returned buffer.
func (f *FleepConfig) PasswordBuffer() (*secret.Buffer, error) {
	if f.Password != "" {
		buffer, err := secret.FromString(f.Password)
		f.Password = ""
		if err != nil {
			return nil, fmt.Errorf("config: protecting password: %w", err)
		}
		return buffer, nil
	}
	if f.PasswordFile != "" {
		return secret.ReadFile(f.PasswordFile)
	}
	return nil, fmt.Errorf("config: no password configured")
}

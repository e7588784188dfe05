// Package config loads the pieform server configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. PIEFORM_SERVER_ADDR.
const EnvPrefix = "PIEFORM_"

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Session  SessionConfig  `yaml:"session"`
	Forms    FormsConfig    `yaml:"forms"`
	Theme    ThemeConfig    `yaml:"theme"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string `yaml:"addr"`
	ReadTimeout     string `yaml:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout"`
}

// DatabaseConfig configures the record store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Prefix string `yaml:"prefix"`
}

// SessionConfig configures session persistence. An empty Path keeps
// sessions in memory.
type SessionConfig struct {
	Path       string `yaml:"path"`
	CookieName string `yaml:"cookie_name"`
	TTL        string `yaml:"ttl"`
	Secure     bool   `yaml:"secure"`
}

// FormsConfig points at an optional descriptor directory overriding the
// built-in site forms. Watch reloads it on change.
type FormsConfig struct {
	Dir      string `yaml:"dir"`
	Watch    bool   `yaml:"watch"`
	Renderer string `yaml:"renderer"`
}

// ThemeConfig selects the theme exposed to renderers.
type ThemeConfig struct {
	Name      string            `yaml:"name"`
	Variant   string            `yaml:"variant"`
	AssetBase string            `yaml:"asset_base"`
	CSSVars   map[string]string `yaml:"css_vars"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     "15s",
			WriteTimeout:    "30s",
			ShutdownTimeout: "10s",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/pieform.db",
			Prefix: "",
		},
		Session: SessionConfig{
			CookieName: "pieform_session",
			TTL:        "24h",
		},
		Forms: FormsConfig{
			Renderer: "html",
		},
		Theme: ThemeConfig{
			Name:      "raw",
			AssetBase: "/static/",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path over the defaults and applies environment overrides. A
// missing file yields the defaults; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks durations and enumerations.
func (c *Config) Validate() error {
	for name, value := range map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"session.ttl":             c.Session.TTL,
	} {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("config: logging.format %q must be json or console", c.Logging.Format)
	}
	if c.Server.Addr == "" {
		return errors.New("config: server.addr is required")
	}
	return nil
}

// Duration parses a validated duration field, returning 0 when empty.
func Duration(value string) time.Duration {
	d, _ := time.ParseDuration(value)
	return d
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SERVER_ADDR":      &c.Server.Addr,
		"DATABASE_DRIVER":  &c.Database.Driver,
		"DATABASE_DSN":     &c.Database.DSN,
		"DATABASE_PREFIX":  &c.Database.Prefix,
		"SESSION_PATH":     &c.Session.Path,
		"SESSION_TTL":      &c.Session.TTL,
		"FORMS_DIR":        &c.Forms.Dir,
		"FORMS_RENDERER":   &c.Forms.Renderer,
		"THEME_NAME":       &c.Theme.Name,
		"THEME_VARIANT":    &c.Theme.Variant,
		"LOGGING_LEVEL":    &c.Logging.Level,
		"LOGGING_FORMAT":   &c.Logging.Format,
		"THEME_ASSET_BASE": &c.Theme.AssetBase,
	}
	for key, target := range strs {
		if value, ok := lookup(EnvPrefix + key); ok {
			*target = value
		}
	}

	bools := map[string]*bool{
		"SESSION_SECURE": &c.Session.Secure,
		"FORMS_WATCH":    &c.Forms.Watch,
	}
	for key, target := range bools {
		value, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*target = parsed
	}
	return nil
}

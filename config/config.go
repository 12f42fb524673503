// Package config loads the velograph tool configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AddressEnv overrides the configured store address when set.
const AddressEnv = "VELOGRAPH_STORE_ADDRESS"

// Defaults.
const (
	DefaultAddress       = "localhost:9080"
	DefaultTimeout       = 30 * time.Second
	DefaultMigrationsDir = "migrations"
	DefaultPackage       = "migrations"
	DefaultSlowThreshold = 200 * time.Millisecond
)

// Config is the content of a velograph.yaml file.
type Config struct {
	Store      Store      `yaml:"store"`
	Migrations Migrations `yaml:"migrations"`
	Log        Log        `yaml:"log"`
	Stats      Stats      `yaml:"stats"`
}

// Store configures the connection to the graph store.
type Store struct {
	Address string `yaml:"address"`
	// Timeout bounds every command run against the store.
	// Format: Go duration string (e.g. "30s").
	Timeout  Duration `yaml:"timeout"`
	User     string   `yaml:"user,omitempty"`
	Password string   `yaml:"password,omitempty"`
}

// Migrations configures where authored migrations are written.
type Migrations struct {
	Dir     string `yaml:"dir"`
	Package string `yaml:"package"`
}

// Log configures the logger built by Logger.
type Log struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// Stats configures the statistics driver.
type Stats struct {
	SlowThreshold Duration `yaml:"slow_threshold"`
}

// Duration is a time.Duration read from a Go duration string.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: line %d: %w", n.Line, err)
	}
	*d = Duration(v)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Default returns a configuration holding only defaults.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads the configuration file at path. A missing file yields the
// defaults. The address environment override is applied last.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML configuration, applies defaults and validates the
// result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	c.applyDefaults()
	if addr := os.Getenv(AddressEnv); addr != "" {
		c.Store.Address = addr
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Store.Address == "" {
		c.Store.Address = DefaultAddress
	}
	if c.Store.Timeout == 0 {
		c.Store.Timeout = Duration(DefaultTimeout)
	}
	if c.Migrations.Dir == "" {
		c.Migrations.Dir = DefaultMigrationsDir
	}
	if c.Migrations.Package == "" {
		c.Migrations.Package = DefaultPackage
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Stats.SlowThreshold == 0 {
		c.Stats.SlowThreshold = Duration(DefaultSlowThreshold)
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.Timeout < 0 {
		errs = append(errs, fmt.Errorf("config: negative store.timeout %s", c.Store.Timeout.Std()))
	}
	if c.Stats.SlowThreshold < 0 {
		errs = append(errs, fmt.Errorf("config: negative stats.slow_threshold %s", c.Stats.SlowThreshold.Std()))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log.format %q", c.Log.Format))
	}
	if (c.Store.User == "") != (c.Store.Password == "") {
		errs = append(errs, errors.New("config: store.user and store.password must be set together"))
	}
	return errors.Join(errs...)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("config: unknown log.level %q", s)
}

// Logger builds a logger writing to w in the configured format and level.
func (c *Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

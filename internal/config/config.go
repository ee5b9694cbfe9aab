package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListen      = "127.0.0.1:8089"
	DefaultDebounce    = 500 * time.Millisecond
	DefaultMaxSessions = 256
)

// Config mirrors orgpulse.yml.
type Config struct {
	Serve ServeConfig `yaml:"serve"`
}

// ServeConfig controls the HTTP API and registry reloads.
type ServeConfig struct {
	Listen      string        `yaml:"listen"`
	Watch       *bool         `yaml:"watch"`
	Debounce    time.Duration `yaml:"debounce"`
	MaxSessions int           `yaml:"max_sessions"` // 0 disables the cap
}

// WatchEnabled reports whether registry reloads are on. Defaults to true.
func (s ServeConfig) WatchEnabled() bool {
	return s.Watch == nil || *s.Watch
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Serve: ServeConfig{
			Listen:      DefaultListen,
			Debounce:    DefaultDebounce,
			MaxSessions: DefaultMaxSessions,
		},
	}
}

// Load reads path and fills unset fields with defaults. A missing file is not
// an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config bytes, rejecting unknown keys. Keys absent from
// the document keep their defaults; explicit zero values are kept.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Serve.Listen) == "" {
		problems = append(problems, "serve.listen is required")
	}
	if c.Serve.Debounce < 0 {
		problems = append(problems, "serve.debounce must not be negative")
	}
	if c.Serve.MaxSessions < 0 {
		problems = append(problems, "serve.max_sessions must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

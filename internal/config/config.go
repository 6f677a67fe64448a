// Package config loads diagramport configuration from disk.
//
// Configuration is TOML, looked up at (first match wins):
//   - the path in the DIAGRAMPORT_CONFIG environment variable
//   - ~/.config/diagramport/config.toml
//   - built-in defaults
//
// Every value can still be overridden per invocation by CLI flags; the
// file only changes defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"diagramport/pkg/backend"
	"diagramport/pkg/export"
	"diagramport/pkg/naming"
)

// Config is the complete diagramport configuration.
type Config struct {
	Export ExportConfig `toml:"export"`
	Cache  CacheConfig  `toml:"cache"`
	Server ServerConfig `toml:"server"`
}

// ExportConfig holds default export options.
type ExportConfig struct {
	// Formats are the default output formats.
	Formats []string `toml:"formats"`

	// NamingMode is "versioned" or "overwrite".
	NamingMode string `toml:"naming_mode"`

	// OutputDir overrides where artifacts are written. Empty means
	// alongside each source.
	OutputDir string `toml:"output_dir"`

	// OrganizeByFormat places outputs under per-format subdirectories.
	OrganizeByFormat bool `toml:"organize_by_format"`

	// MaxDepth bounds directory discovery.
	MaxDepth int `toml:"max_depth"`

	// Theme, Background, Width, Height are default render options.
	Theme      string `toml:"theme"`
	Background string `toml:"background"`
	Width      int    `toml:"width"`
	Height     int    `toml:"height"`

	// Backend is the preferred backend name. Empty means priority order.
	Backend string `toml:"backend"`

	// Workers is the render worker count.
	Workers int `toml:"workers"`

	// ProbeTTLSecs is how long backend probe results stay cached, in
	// seconds. Zero means the built-in default.
	ProbeTTLSecs int `toml:"probe_ttl_secs"`
}

// CacheConfig selects and configures the render cache.
type CacheConfig struct {
	// Backend is "file", "redis", or "none".
	Backend string `toml:"backend"`

	// Dir overrides the file cache directory (file backend only).
	Dir string `toml:"dir"`

	// Redis connection settings (redis backend only).
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `toml:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Export: ExportConfig{
			Formats:    []string{backend.FormatSVG},
			NamingMode: string(export.DefaultNamingMode),
			Theme:      backend.ThemeDefault,
			MaxDepth:   export.DefaultMaxDepth,
			Workers:    export.DefaultWorkers,
		},
		Cache: CacheConfig{
			Backend: "file",
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// DefaultPath returns the standard config file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".config", "diagramport", "config.toml"), nil
}

// Load reads configuration from the standard locations. A missing file is
// not an error; defaults are returned. A present but malformed file is.
func Load() (*Config, error) {
	if path := os.Getenv("DIAGRAMPORT_CONFIG"); path != "" {
		return LoadFile(path)
	}

	path, err := DefaultPath()
	if err != nil {
		return Default(), nil
	}
	if _, err := os.Stat(path); err != nil {
		return Default(), nil
	}
	return LoadFile(path)
}

// LoadFile reads configuration from an explicit path, applied on top of
// the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values that have a constrained domain.
func (c *Config) Validate() error {
	if err := backend.ValidateFormats(c.Export.Formats); err != nil {
		return err
	}
	if err := naming.ValidateMode(naming.Mode(c.Export.NamingMode)); err != nil {
		return err
	}
	if err := backend.ValidateTheme(c.Export.Theme); err != nil {
		return err
	}
	switch c.Cache.Backend {
	case "file", "redis", "none":
	default:
		return fmt.Errorf("invalid cache backend %q (must be file, redis, or none)", c.Cache.Backend)
	}
	return nil
}

// ExportOptions converts the configured defaults into export options.
// Flag handling layers per-invocation overrides on top of the result.
func (c *Config) ExportOptions() export.Options {
	return export.Options{
		Formats:          append([]string(nil), c.Export.Formats...),
		NamingMode:       naming.Mode(c.Export.NamingMode),
		OutputDir:        c.Export.OutputDir,
		OrganizeByFormat: c.Export.OrganizeByFormat,
		MaxDepth:         c.Export.MaxDepth,
		Theme:            c.Export.Theme,
		Background:       c.Export.Background,
		Width:            c.Export.Width,
		Height:           c.Export.Height,
		Backend:          c.Export.Backend,
		Workers:          c.Export.Workers,
	}
}

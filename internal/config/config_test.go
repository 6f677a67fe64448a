package config

import (
	"os"
	"path/filepath"
	"testing"

	"diagramport/pkg/naming"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[export]
formats = ["svg", "png"]
naming_mode = "overwrite"
theme = "dark"
workers = 4

[cache]
backend = "redis"
redis_addr = "localhost:6379"

[server]
addr = ":9090"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if len(cfg.Export.Formats) != 2 || cfg.Export.Formats[1] != "png" {
		t.Errorf("formats = %v, want [svg png]", cfg.Export.Formats)
	}
	if cfg.Export.NamingMode != "overwrite" {
		t.Errorf("naming_mode = %q, want overwrite", cfg.Export.NamingMode)
	}
	if cfg.Export.Workers != 4 {
		t.Errorf("workers = %d, want 4", cfg.Export.Workers)
	}
	// Unset fields keep their defaults.
	if cfg.Export.MaxDepth != 5 {
		t.Errorf("max_depth = %d, want default 5", cfg.Export.MaxDepth)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.RedisAddr != "localhost:6379" {
		t.Errorf("cache = %+v, want redis at localhost:6379", cfg.Cache)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server addr = %q, want :9090", cfg.Server.Addr)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"bad toml", `[export` + "\n"},
		{"bad format", "[export]\nformats = [\"gif\"]\n"},
		{"bad mode", "[export]\nnaming_mode = \"timestamped\"\n"},
		{"bad cache backend", "[cache]\nbackend = \"memcached\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("DIAGRAMPORT_CONFIG", "")
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Export.NamingMode != "versioned" {
		t.Errorf("naming_mode = %q, want versioned default", cfg.Export.NamingMode)
	}
}

func TestExportOptions(t *testing.T) {
	cfg := Default()
	cfg.Export.NamingMode = "overwrite"
	cfg.Export.OrganizeByFormat = true

	opts := cfg.ExportOptions()
	if opts.NamingMode != naming.ModeOverwrite {
		t.Errorf("mode = %v, want overwrite", opts.NamingMode)
	}
	if !opts.OrganizeByFormat {
		t.Error("organize_by_format not carried over")
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		t.Fatalf("converted options invalid: %v", err)
	}
}

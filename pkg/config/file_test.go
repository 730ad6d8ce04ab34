package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timeout.Duration != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout.Duration, DefaultTimeout)
	}
	if cfg.Format != DefaultFormat {
		t.Errorf("Format = %q, want %q", cfg.Format, DefaultFormat)
	}
	if cfg.Path() != "" {
		t.Errorf("Path() = %q, want empty", cfg.Path())
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() should fail for a missing explicit file")
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	path := filepath.Join(dir, "diagrender", "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	content := `timeout = "90s"
format = "latex"
keep_going = true

[metadata]
dot-image-folder = "build/img"
plot-transparent = true
tikz-packages = ["arrows", "positioning"]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Timeout.Duration != 90*time.Second {
		t.Errorf("Timeout = %v, want 90s", cfg.Timeout.Duration)
	}
	if cfg.Format != "latex" || !cfg.KeepGoing {
		t.Errorf("Format = %q, KeepGoing = %v", cfg.Format, cfg.KeepGoing)
	}
	if got, _ := cfg.Metadata.String("dot-image-folder"); got != "build/img" {
		t.Errorf("dot-image-folder = %q", got)
	}
	if got, _ := cfg.Metadata.Bool("plot-transparent"); !got {
		t.Error("plot-transparent = false, want true")
	}
	if got := cfg.Metadata.List("tikz-packages"); len(got) != 2 {
		t.Errorf("tikz-packages = %v", got)
	}
	if cfg.Path() != path {
		t.Errorf("Path() = %q, want %q", cfg.Path(), path)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`timeout = "soon"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject an invalid duration")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`colour = "blue"`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should reject unknown keys")
	}
}

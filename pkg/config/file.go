package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/diagrender/pkg/document"
)

const (
	// appName is the directory name used under the XDG config home.
	appName = "diagrender"

	// DefaultTimeout bounds a single external renderer invocation.
	DefaultTimeout = 5 * time.Minute

	// DefaultFormat is the target document format when none is configured.
	DefaultFormat = "html"
)

// Duration is a time.Duration that decodes from TOML strings such as "90s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// File is the diagrender tool configuration.
//
//	timeout = "2m"
//	format = "latex"
//	keep_going = true
//
//	[metadata]
//	dot-image-folder = "build/img"
//	tikz-packages = ["arrows", "positioning"]
type File struct {
	// Timeout bounds each external tool invocation. Zero disables the limit.
	Timeout Duration `toml:"timeout"`

	// Format is the default target document format.
	Format string `toml:"format"`

	// KeepGoing leaves failing blocks untouched instead of aborting the document.
	KeepGoing bool `toml:"keep_going"`

	// Metadata is a default layer below document metadata.
	Metadata document.Metadata `toml:"metadata"`

	// path is the file the configuration was read from, empty for defaults.
	path string
}

// Defaults returns the built-in configuration.
func Defaults() *File {
	return &File{
		Timeout:  Duration{DefaultTimeout},
		Format:   DefaultFormat,
		Metadata: document.Metadata{},
	}
}

// Path returns the file the configuration was read from, or "" for defaults.
func (f *File) Path() string { return f.path }

// DefaultPath returns the configuration file location using the XDG standard
// (~/.config/diagrender/config.toml).
func DefaultPath() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, appName, "config.toml"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName, "config.toml"), nil
}

// Load reads the configuration at path. An empty path means DefaultPath, and a
// missing default file yields the built-in defaults. An explicitly named file
// must exist.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return Defaults(), nil
		}
		path = p
	}

	cfg := Defaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("reading config file: unknown key %q", undecoded[0].String())
	}

	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.Metadata == nil {
		cfg.Metadata = document.Metadata{}
	}
	cfg.path = path
	return cfg, nil
}

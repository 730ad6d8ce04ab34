// Package cli implements the diagrender command-line interface.
//
// # Commands
//
//   - render: render the diagram blocks of a markdown document
//   - block: render a single code block read from stdin
//   - watch: re-render a document whenever it changes
//   - serve: HTTP API for rendering blocks
//   - cache: list, browse and clear image folders
//   - backends: list backends and the tools they need
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which includes
// how every option of a block was resolved.
package cli

import (
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/diagrender/pkg/buildinfo"
	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
	"github.com/matzehuels/diagrender/pkg/pipeline"
	"github.com/matzehuels/diagrender/pkg/render"
	"github.com/matzehuels/diagrender/pkg/render/backends"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for display.
	appName = "diagrender"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Stats counts render events for command summaries.
	Stats *observability.Stats

	configPath string
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Stats:  &observability.Stats{},
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          appName,
		Short:        "diagrender renders diagram code blocks into cached images",
		Long:         `diagrender replaces graphviz, mermaid, PlantUML, TikZ and matplotlib code blocks in markdown documents with references to rendered images. Images are cached by content, so unchanged diagrams are never rendered twice.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			observability.SetRenderHooks(c.Stats)
			observability.SetToolHooks(c.Stats)
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "tool configuration file (default $XDG_CONFIG_HOME/diagrender/config.toml)")

	// Register all subcommands
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.blockCommand())
	root.AddCommand(c.watchCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.backendsCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// runFlags are the render flags shared by render, block, watch and serve.
type runFlags struct {
	timeout time.Duration
	refresh bool
	format  string
	meta    []string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "limit for each external tool run (default from config, 5m)")
	cmd.Flags().BoolVar(&f.refresh, "refresh", false, "re-render images even when cached")
	cmd.Flags().StringVarP(&f.format, "to", "t", "", "target document format, e.g. html or latex (default from config, html)")
	cmd.Flags().StringArrayVarP(&f.meta, "meta", "M", nil, "metadata field key=value (repeatable)")
}

// session bundles the configured runner with the resolved run settings.
type session struct {
	cfg    *config.File
	runner *render.Runner
	format string
	meta   document.Metadata
}

// newSession loads the tool configuration and builds a runner for CLI use.
func (c *CLI) newSession(cmd *cobra.Command, f *runFlags) (*session, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "load configuration")
	}
	if cfg.Path() != "" {
		c.Logger.Debug("loaded configuration", "path", cfg.Path())
	}

	meta, err := parseMetadata(f.meta)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout.Duration
	if cmd.Flags().Changed("timeout") {
		timeout = f.timeout
	}
	format := cfg.Format
	if f.format != "" {
		format = f.format
	}

	runner := render.NewRunner(backends.Registry(), &render.ExecRunner{Timeout: timeout, Logger: c.Logger}, c.Logger)
	runner.Defaults = cfg.Metadata
	runner.Refresh = f.refresh

	return &session{cfg: cfg, runner: runner, format: format, meta: meta}, nil
}

func (s *session) processor(logger *log.Logger) *pipeline.Processor {
	return pipeline.NewProcessor(s.runner, logger)
}

// =============================================================================
// Flag Helpers
// =============================================================================

// parseAttributes parses repeated key=value flags in order. A bare key maps
// to an empty value, which boolean options treat as set.
func parseAttributes(pairs []string) (document.Attributes, error) {
	attrs := make(document.Attributes, 0, len(pairs))
	for _, p := range pairs {
		k, v, _ := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if k == "" {
			return nil, errors.New(errors.ErrCodeInvalidInput, "invalid key=value pair %q", p)
		}
		attrs = append(attrs, document.Attribute{Key: k, Value: v})
	}
	return attrs, nil
}

// parseMetadata parses repeated key=value flags into metadata. Later keys win
// and a comma-separated value stays a single string.
func parseMetadata(pairs []string) (document.Metadata, error) {
	attrs, err := parseAttributes(pairs)
	if err != nil {
		return nil, err
	}
	meta := make(document.Metadata, len(attrs))
	for _, a := range attrs {
		meta[a.Key] = a.Value
	}
	return meta, nil
}

// Package pipeline renders every diagram block of a markdown document.
//
// This package is the document host shared by the CLI commands and the HTTP
// server: it parses the document, hands each fenced code block to a
// [render.Runner] and splices the returned markup back into the source.
//
// # Failure Policy
//
// By default the first failing block aborts the whole document and no output
// is produced. With [Options.KeepGoing] failing blocks are left unchanged and
// reported in [Result.Failures].
//
// # Usage
//
//	proc := pipeline.NewProcessor(runner, logger)
//	result, err := proc.Process(ctx, src, pipeline.Options{Format: "html"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Stdout.Write(result.Output)
package pipeline

import (
	"time"

	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
)

// DefaultFormat is the target document format when none is given.
const DefaultFormat = "html"

// Options configures one document run.
type Options struct {
	// Format is the target document format ("html", "latex", ...). Backends
	// such as tikz change behavior for typesetting formats.
	Format string

	// KeepGoing leaves failing blocks unchanged instead of aborting.
	KeepGoing bool

	// Metadata overrides fields of the document front matter.
	Metadata document.Metadata
}

// ValidateAndSetDefaults fills in defaults and validates the options.
func (o *Options) ValidateAndSetDefaults() error {
	if o.Format == "" {
		o.Format = DefaultFormat
	}
	return errors.ValidateFormat(o.Format)
}

// Failure describes a block that could not be rendered.
type Failure struct {
	Index int   // block index in the document
	Line  int   // 1-based line of the opening fence
	Err   error // the render error
}

// Result is the outcome of processing a document.
type Result struct {
	// RunID identifies the run in logs.
	RunID string

	// Output is the rewritten document.
	Output []byte

	// Failures lists failing blocks (only with KeepGoing).
	Failures []Failure

	Stats Stats
}

// Stats counts what happened to the blocks of a document.
type Stats struct {
	Blocks      int // fenced code blocks in the document
	Rendered    int // blocks rendered by an external tool
	Cached      int // blocks served entirely from the cache
	Passthrough int // blocks emitted without rendering
	Images      int // image references emitted
	Duration    time.Duration
}

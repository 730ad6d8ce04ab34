package render

import (
	"context"
	"strings"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
)

// DefaultFormat is the image format used when neither the block nor the
// metadata names one.
const DefaultFormat = "png"

// Backend configures render jobs for one diagram language.
type Backend interface {
	// Name is the metadata prefix ("dot" reads "dot-image-format") and the
	// style class of the emitted image.
	Name() string
	// Classes lists the code block classes that select this backend.
	Classes() []string
	// Configure resolves the block's configuration into a job. Missing or
	// malformed values fall back to defaults; only an unrecognized output
	// format is an error.
	Configure(r *config.Resolver, b *document.CodeBlock) (Job, error)
}

// Job is a fully configured render request.
type Job interface {
	// Image returns the options shared by all backends.
	Image() Image
	// Material returns the values hashed after the block text, in a fixed
	// order. Every option that changes the output bytes must appear here.
	Material() []string
	// Prepare writes input files into the workspace.
	Prepare(ws *Workspace) error
	// Invoke runs the external tool(s).
	Invoke(ctx context.Context, ws *Workspace, x Executor) error
	// Collect moves the produced files into the cache and returns their paths.
	Collect(ws *Workspace, out Output) ([]string, error)
}

// Passthrough is implemented by jobs that may skip rendering entirely and
// emit the given markup instead.
type Passthrough interface {
	Passthrough() (markup string, ok bool)
}

// MultiOutput is implemented by jobs that produce a numbered image sequence
// (identity1.png, identity2.png, ...) instead of a single file.
type MultiOutput interface {
	Multi() bool
}

// SourceEcho is implemented by jobs that echo their source as a code block of
// the given language ahead of the images.
type SourceEcho interface {
	ShowSource() (lang string, ok bool)
}

// Image holds the resolved options common to every backend.
type Image struct {
	Format  string // output image format, never empty
	Folder  string // cache folder, empty for the working directory
	Caption string
	Width   string // pass-through directives, empty when absent
	Height  string
	DPI     string
}

// ResolveImage resolves the common image options:
//
//	format:  attribute "format"  > <backend>-image-format > def
//	folder:  attribute "folder"  > <backend>-image-folder
//	caption, width, height, dpi: block attributes only
func ResolveImage(r *config.Resolver, def string) Image {
	if def == "" {
		def = DefaultFormat
	}
	return Image{
		Format:  strings.ToLower(r.String("format", "image-format", def)),
		Folder:  r.Optional("folder", "image-folder"),
		Caption: r.Attr("caption"),
		Width:   r.Attr("width"),
		Height:  r.Attr("height"),
		DPI:     r.Attr("dpi"),
	}
}

// CheckFormat returns an INVALID_FORMAT error unless format is one of allowed.
func CheckFormat(backend, format string, allowed []string) error {
	if err := errors.ValidateFormat(format); err != nil {
		return err
	}
	for _, f := range allowed {
		if f == format {
			return nil
		}
	}
	return errors.New(errors.ErrCodeInvalidFormat,
		"%s: unsupported image format %q (supported: %s)", backend, format, strings.Join(allowed, ", "))
}

// Package dot renders Graphviz code blocks.
//
// The block text is piped to the dot executable:
//
//	dot -Tpng -o<workspace>/out.png
//
// When the metadata field dot-path is "builtin", or it is unset and dot is not
// installed, the graph is laid out in process with go-graphviz instead. A
// dot-path naming a missing executable fails with TOOL_NOT_FOUND. The builtin
// renderer writes svg, png and jpg directly and produces pdf by piping its svg
// through rsvg-convert.
//
// Options:
//
//	format   attribute "format" > dot-image-format > png
//	folder   attribute "folder" > dot-image-folder
//	dot-path metadata only, default "dot"
//
// Only the block text is hashed; format and folder select the file name.
package dot

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/observability"
	"github.com/matzehuels/diagrender/pkg/render"
)

const (
	// Name is the backend name and metadata prefix.
	Name = "dot"
	// Builtin selects the in-process renderer as dot-path.
	Builtin = "builtin"

	defaultPath = "dot"
)

// Formats lists the output formats accepted from the dot executable.
var Formats = []string{"png", "svg", "pdf", "jpg", "jpeg", "gif", "ps", "eps", "bmp", "tif", "tiff", "webp"}

// BuiltinFormats lists the output formats of the in-process renderer.
var BuiltinFormats = []string{"svg", "png", "jpg", "jpeg", "pdf"}

// Backend renders dot blocks.
type Backend struct {
	// LookPath locates executables. It defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// New returns the dot backend.
func New() *Backend {
	return &Backend{LookPath: exec.LookPath}
}

func (b *Backend) Name() string      { return Name }
func (b *Backend) Classes() []string { return []string{"dot"} }

// Config is the resolved configuration of a dot block.
type Config struct {
	render.Image
	// Path is the dot executable, or Builtin.
	Path string
	// Builtin reports whether the in-process renderer is used.
	Builtin bool
}

// Configure implements render.Backend.
func (b *Backend) Configure(r *config.Resolver, block *document.CodeBlock) (render.Job, error) {
	path := r.Lookup("", "path", defaultPath)
	cfg := Config{
		Image: render.ResolveImage(r, render.DefaultFormat),
		Path:  path.Value,
	}
	// Only an unset dot-path falls back; a configured one must exist.
	cfg.Builtin = cfg.Path == Builtin ||
		(path.Source == config.SourceDefault && !b.available(cfg.Path))

	allowed := Formats
	if cfg.Builtin {
		allowed = BuiltinFormats
	}
	if err := render.CheckFormat(Name, cfg.Format, allowed); err != nil {
		return nil, err
	}
	return &job{cfg: cfg, text: block.Text}, nil
}

func (b *Backend) available(path string) bool {
	if path == Builtin {
		return false
	}
	lookPath := b.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	_, err := lookPath(path)
	return err == nil
}

type job struct {
	cfg  Config
	text string
}

func (j *job) Image() render.Image { return j.cfg.Image }

// Material is empty: format and folder only change the file name.
func (j *job) Material() []string { return nil }

func (j *job) Prepare(*render.Workspace) error { return nil }

func (j *job) output() string { return "out." + j.cfg.Format }

func (j *job) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	if j.cfg.Builtin {
		return j.builtin(ctx, ws, x)
	}
	return x.Run(ctx, render.Command{
		Name:  j.cfg.Path,
		Args:  []string{"-T" + j.cfg.Format, "-o" + ws.Path(j.output())},
		Dir:   ws.Dir,
		Stdin: []byte(j.text),
	})
}

func (j *job) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	return out.Publish(Name, ws.Path(j.output()))
}

func (j *job) builtin(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	switch j.cfg.Format {
	case "pdf":
		svg, err := Render(ctx, j.text, graphviz.SVG)
		if err != nil {
			return err
		}
		return x.Run(ctx, render.Command{
			Name:  "rsvg-convert",
			Args:  []string{"-f", "pdf", "-o", ws.Path(j.output())},
			Dir:   ws.Dir,
			Stdin: svg,
		})
	case "jpg", "jpeg":
		return j.write(ctx, ws, graphviz.JPG)
	case "png":
		return j.write(ctx, ws, graphviz.PNG)
	default:
		return j.write(ctx, ws, graphviz.SVG)
	}
}

func (j *job) write(ctx context.Context, ws *render.Workspace, format graphviz.Format) error {
	data, err := Render(ctx, j.text, format)
	if err != nil {
		return err
	}
	return ws.WriteFile(j.output(), data)
}

// Render lays out a DOT graph in process and returns the encoded image.
func Render(ctx context.Context, src string, format graphviz.Format) ([]byte, error) {
	observability.Tool().OnToolStart(ctx, "go-graphviz", []string{"-T" + string(format)})
	start := time.Now()
	data, err := renderGraph(ctx, src, format)
	observability.Tool().OnToolExit(ctx, "go-graphviz", time.Since(start), err)
	return data, err
}

func renderGraph(ctx context.Context, src string, format graphviz.Format) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(src))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolFailed, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, format, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeToolFailed, err, "render DOT")
	}
	return buf.Bytes(), nil
}

// Package plot renders matplotlib snippets.
//
// The snippet runs in a fresh namespace with matplotlib, plt and np already
// imported. Every figure left open is saved, in creation order, producing a
// numbered image sequence.
//
// Options:
//
//	format      attribute "format"      > plot-image-format > png
//	folder      attribute "folder"      > plot-image-folder
//	renderer    attribute "renderer"    > plot-renderer     > by format (png AGG, ps PS, pdf PDF, svg SVG)
//	transparent attribute "transparent" > plot-transparent  > false
//	show        class or attribute "show" > plot-show       > false
//	plot-path   metadata only, default "python3"
//
// The snippet runs in the caller's working directory, so relative data files
// resolve as they would in a plain script; figures are written to the
// workspace. Transparency is hashed. With show set the snippet is echoed as a python
// code block before the images.
package plot

import (
	"context"
	_ "embed"
	"os"
	"strconv"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Name is the backend name and metadata prefix.
const Name = "plot"

const (
	defaultPath = "python3"

	driverFile  = "driver.py"
	snippetFile = "snippet.py"
)

//go:embed driver.py
var driver []byte

// Renderers maps image formats to their default matplotlib backend.
var Renderers = map[string]string{
	"png": "AGG",
	"ps":  "PS",
	"pdf": "PDF",
	"svg": "SVG",
}

// Backend renders plot blocks.
type Backend struct{}

// New returns the plot backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string      { return Name }
func (*Backend) Classes() []string { return []string{"plot", "plt"} }

// Config is the resolved configuration of a plot block.
type Config struct {
	render.Image
	Path        string
	Renderer    string
	Transparent bool
	Show        bool
}

// Configure implements render.Backend. A format without a default renderer
// is rejected unless a renderer is given explicitly.
func (*Backend) Configure(r *config.Resolver, b *document.CodeBlock) (render.Job, error) {
	cfg := Config{
		Image:       render.ResolveImage(r, render.DefaultFormat),
		Path:        r.String("", "path", defaultPath),
		Transparent: r.Bool("transparent", "transparent", false),
		Show:        r.Flag("show") || r.Bool("", "show", false),
	}
	if err := errors.ValidateFormat(cfg.Format); err != nil {
		return nil, err
	}
	cfg.Renderer = r.String("renderer", "renderer", Renderers[cfg.Format])
	if cfg.Renderer == "" {
		return nil, errors.New(errors.ErrCodeInvalidFormat,
			"%s: no renderer for image format %q; set the renderer attribute or plot-renderer", Name, cfg.Format)
	}
	return &job{cfg: cfg, text: b.Text}, nil
}

type job struct {
	cfg  Config
	text string
}

func (j *job) Image() render.Image { return j.cfg.Image }
func (j *job) Multi() bool         { return true }

// Material hashes the transparency flag.
func (j *job) Material() []string {
	if j.cfg.Transparent {
		return []string{"trans"}
	}
	return nil
}

func (j *job) ShowSource() (string, bool) { return "python", j.cfg.Show }

func (j *job) Prepare(ws *render.Workspace) error {
	if err := ws.WriteFile(driverFile, driver); err != nil {
		return err
	}
	return ws.WriteFile(snippetFile, []byte(j.text))
}

func (j *job) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	transparent := "0"
	if j.cfg.Transparent {
		transparent = "1"
	}
	return x.Run(ctx, render.Command{
		Name: j.cfg.Path,
		Args: []string{ws.Path(driverFile), ws.Path(snippetFile), j.cfg.Renderer, j.cfg.Format, transparent, ws.Dir},
	})
}

// Collect publishes figure-1, figure-2, ... up to the first missing file.
func (j *job) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	var figures []string
	for n := 1; ; n++ {
		p := ws.Path("figure-" + strconv.Itoa(n) + "." + j.cfg.Format)
		if _, err := os.Stat(p); err != nil {
			break
		}
		figures = append(figures, p)
	}
	if len(figures) == 0 {
		return nil, errors.New(errors.ErrCodeToolFailed, "%s: snippet created no figures", Name)
	}
	return out.PublishSequence(Name, figures)
}

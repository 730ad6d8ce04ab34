// Package mermaid renders mermaid diagrams with the mermaid CLI (mmdc).
//
// Options:
//
//	format       attribute "format"     > mermaid-image-format > png (png, svg, pdf)
//	folder       attribute "folder"     > mermaid-image-folder
//	width        attribute "width"      > mermaid-width        > 800
//	height       attribute "height"     > mermaid-height       > 600
//	background   attribute "background" > mermaid-background   > white
//	mermaid-path metadata only, default "mmdc"
//
// Width, height and background are baked into the image and therefore hashed.
package mermaid

import (
	"context"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Name is the backend name and metadata prefix.
const Name = "mermaid"

const (
	defaultPath       = "mmdc"
	defaultWidth      = "800"
	defaultHeight     = "600"
	defaultBackground = "white"

	inputFile = "input.mmd"
)

// Formats lists the output formats mmdc can write.
var Formats = []string{"png", "svg", "pdf"}

// Backend renders mermaid blocks.
type Backend struct{}

// New returns the mermaid backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string      { return Name }
func (*Backend) Classes() []string { return []string{"mermaid", "mmd"} }

// Config is the resolved configuration of a mermaid block.
type Config struct {
	render.Image
	Path        string
	PixelWidth  string
	PixelHeight string
	Background  string
}

// Configure implements render.Backend.
func (*Backend) Configure(r *config.Resolver, b *document.CodeBlock) (render.Job, error) {
	cfg := Config{
		Image:       render.ResolveImage(r, render.DefaultFormat),
		Path:        r.String("", "path", defaultPath),
		PixelWidth:  r.String("width", "width", defaultWidth),
		PixelHeight: r.String("height", "height", defaultHeight),
		Background:  r.String("background", "background", defaultBackground),
	}
	if err := render.CheckFormat(Name, cfg.Format, Formats); err != nil {
		return nil, err
	}
	return &job{cfg: cfg, text: b.Text}, nil
}

type job struct {
	cfg  Config
	text string
}

func (j *job) Image() render.Image { return j.cfg.Image }

// Material hashes width, height and background, in that order.
func (j *job) Material() []string {
	return []string{j.cfg.PixelWidth, j.cfg.PixelHeight, j.cfg.Background}
}

func (j *job) output() string { return "out." + j.cfg.Format }

func (j *job) Prepare(ws *render.Workspace) error {
	return ws.WriteFile(inputFile, []byte(j.text))
}

func (j *job) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	return x.Run(ctx, render.Command{
		Name: j.cfg.Path,
		Args: []string{
			"-i", inputFile,
			"-o", j.output(),
			"-w", j.cfg.PixelWidth,
			"-H", j.cfg.PixelHeight,
			"-b", j.cfg.Background,
		},
		Dir: ws.Dir,
	})
}

func (j *job) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	return out.Publish(Name, ws.Path(j.output()))
}

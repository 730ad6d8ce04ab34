// Package tikz renders TikZ pictures.
//
// For LaTeX targets the picture is passed through as raw LaTeX unless the
// block sets pdf=true. Otherwise the picture is wrapped in a standalone
// document, compiled with a TeX engine and converted with ImageMagick.
//
// Options:
//
//	format             attribute "format" > tikz-image-format > png
//	folder             attribute "folder" > tikz-image-folder
//	magick-convert-src attribute > tikz-magick-convert-src > "-density 300 -trim"
//	magick-convert-dst attribute > tikz-magick-convert-dst > "-quality 100"
//	tikz-packages      metadata list, loaded with \usetikzlibrary
//	tikz-gdpackages    metadata list, loaded with \usegdlibrary
//	tikz-engine        metadata only, default "pdflatex"
//	magick-path        metadata only, default "magick"
//
// The convert options are hashed. Packages and engine are not, so changing
// them reuses images already in the cache.
package tikz

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Name is the backend name and metadata prefix.
const Name = "tikz"

const (
	defaultEngine = "pdflatex"
	defaultMagick = "magick"
	defaultSrc    = "-density 300 -trim"
	defaultDst    = "-quality 100"

	texFile = "figure.tex"
	pdfFile = "figure.pdf"
)

// Formats lists the output formats accepted for rasterized pictures.
var Formats = []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff", "webp", "pdf"}

// typesetting lists the target formats that embed TikZ natively.
var typesetting = map[string]bool{"latex": true, "beamer": true}

// Backend renders TikZ blocks.
type Backend struct{}

// New returns the TikZ backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string      { return Name }
func (*Backend) Classes() []string { return []string{"tikz"} }

// Config is the resolved configuration of a TikZ block.
type Config struct {
	render.Image
	Engine     string
	Magick     string
	ConvertSrc string
	ConvertDst string
	Packages   []string
	GDPackages []string
	// Raw reports whether the picture is passed through unrendered.
	Raw bool
}

// Configure implements render.Backend.
func (*Backend) Configure(r *config.Resolver, b *document.CodeBlock) (render.Job, error) {
	cfg := Config{
		Image:      render.ResolveImage(r, render.DefaultFormat),
		Engine:     r.String("", "engine", defaultEngine),
		Magick:     r.Global("magick-path", defaultMagick),
		ConvertSrc: r.String("magick-convert-src", "magick-convert-src", defaultSrc),
		ConvertDst: r.String("magick-convert-dst", "magick-convert-dst", defaultDst),
		Packages:   r.List("packages"),
		GDPackages: r.List("gdpackages"),
		Raw:        typesetting[b.Format] && !r.Bool("pdf", "", false),
	}
	if !cfg.Raw {
		if err := render.CheckFormat(Name, cfg.Format, Formats); err != nil {
			return nil, err
		}
	}
	return &job{cfg: cfg, text: b.Text}, nil
}

type job struct {
	cfg  Config
	text string
}

func (j *job) Image() render.Image { return j.cfg.Image }

// Material hashes the ImageMagick source and destination options.
func (j *job) Material() []string {
	return []string{j.cfg.ConvertSrc, j.cfg.ConvertDst}
}

// Passthrough emits the picture as raw LaTeX for typesetting targets,
// wrapped in a figure when a caption is given.
func (j *job) Passthrough() (string, bool) {
	if !j.cfg.Raw {
		return "", false
	}
	body := j.text
	if j.cfg.Caption != "" {
		body = "\\begin{figure}\n\\centering\n" + body + "\n\\caption{" + j.cfg.Caption + "}\n\\end{figure}"
	}
	return render.RawMarkup("latex", body), true
}

// Document returns the standalone LaTeX document for the picture.
func Document(text string, packages, gdpackages []string) string {
	var sb strings.Builder
	sb.WriteString("\\documentclass{standalone}\n")
	sb.WriteString("\\usepackage{tikz}\n")
	for _, p := range packages {
		sb.WriteString("\\usetikzlibrary{" + p + "}\n")
	}
	if len(gdpackages) > 0 {
		sb.WriteString("\\usetikzlibrary{graphdrawing}\n")
		for _, p := range gdpackages {
			sb.WriteString("\\usegdlibrary{" + p + "}\n")
		}
	}
	sb.WriteString("\\begin{document}\n")
	sb.WriteString(text)
	sb.WriteString("\n\\end{document}\n")
	return sb.String()
}

func (j *job) output() string {
	if j.cfg.Format == "pdf" {
		return pdfFile
	}
	return "figure." + j.cfg.Format
}

func (j *job) Prepare(ws *render.Workspace) error {
	return ws.WriteFile(texFile, []byte(Document(j.text, j.cfg.Packages, j.cfg.GDPackages)))
}

func (j *job) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	if err := x.Run(ctx, render.Command{
		Name: j.cfg.Engine,
		Args: []string{"-interaction=nonstopmode", "-halt-on-error", texFile},
		Dir:  ws.Dir,
	}); err != nil {
		return err
	}
	if j.cfg.Format == "pdf" {
		return nil
	}
	return x.Run(ctx, render.Command{
		Name: j.cfg.Magick,
		Args: j.convertArgs(),
		Dir:  ws.Dir,
	})
}

// convertArgs builds "[convert] src... figure.pdf dst... figure.<fmt>".
// ImageMagick 7 installs a single magick binary that needs the subcommand.
func (j *job) convertArgs() []string {
	var args []string
	if strings.TrimSuffix(filepath.Base(j.cfg.Magick), ".exe") == "magick" {
		args = append(args, "convert")
	}
	args = append(args, strings.Fields(j.cfg.ConvertSrc)...)
	args = append(args, pdfFile)
	args = append(args, strings.Fields(j.cfg.ConvertDst)...)
	return append(args, j.output())
}

func (j *job) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	return out.Publish(Name, ws.Path(j.output()))
}

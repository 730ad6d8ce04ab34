// Package plantuml renders UML diagrams with PlantUML.
//
// The block text is wrapped in @startuml/@enduml and always rendered to png.
//
// Options:
//
//	folder        attribute "folder" > plantuml-image-folder
//	plantuml-path metadata only, default "plantuml"
package plantuml

import (
	"context"

	"github.com/matzehuels/diagrender/pkg/config"
	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/render"
)

// Name is the backend name and metadata prefix.
const Name = "plantuml"

const (
	defaultPath = "plantuml"

	// PlantUML names its output after the input file.
	inputFile  = "diagram.plt"
	outputFile = "diagram.png"
)

// Backend renders PlantUML blocks.
type Backend struct{}

// New returns the PlantUML backend.
func New() *Backend { return &Backend{} }

func (*Backend) Name() string      { return Name }
func (*Backend) Classes() []string { return []string{"plantuml", "puml"} }

// Config is the resolved configuration of a PlantUML block.
type Config struct {
	render.Image
	Path string
}

// Configure implements render.Backend. The format is fixed to png; format
// attributes and metadata are ignored.
func (*Backend) Configure(r *config.Resolver, b *document.CodeBlock) (render.Job, error) {
	img := render.ResolveImage(r, render.DefaultFormat)
	img.Format = "png"
	return &job{
		cfg:  Config{Image: img, Path: r.String("", "path", defaultPath)},
		text: b.Text,
	}, nil
}

type job struct {
	cfg  Config
	text string
}

func (j *job) Image() render.Image { return j.cfg.Image }
func (j *job) Material() []string  { return nil }

// Source returns the PlantUML document written for text.
func Source(text string) string {
	return "@startuml\n" + text + "\n@enduml"
}

func (j *job) Prepare(ws *render.Workspace) error {
	return ws.WriteFile(inputFile, []byte(Source(j.text)))
}

func (j *job) Invoke(ctx context.Context, ws *render.Workspace, x render.Executor) error {
	return x.Run(ctx, render.Command{
		Name: j.cfg.Path,
		Args: []string{inputFile, "-o", ws.Dir},
		Dir:  ws.Dir,
	})
}

func (j *job) Collect(ws *render.Workspace, out render.Output) ([]string, error) {
	return out.Publish(Name, ws.Path(outputFile))
}

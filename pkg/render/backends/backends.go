// Package backends assembles the built-in render backends.
package backends

import (
	"github.com/matzehuels/diagrender/pkg/render"
	"github.com/matzehuels/diagrender/pkg/render/dot"
	"github.com/matzehuels/diagrender/pkg/render/mermaid"
	"github.com/matzehuels/diagrender/pkg/render/plantuml"
	"github.com/matzehuels/diagrender/pkg/render/plot"
	"github.com/matzehuels/diagrender/pkg/render/tikz"
)

// All returns a new instance of every built-in backend.
func All() []render.Backend {
	return []render.Backend{
		dot.New(),
		mermaid.New(),
		plantuml.New(),
		tikz.New(),
		plot.New(),
	}
}

// Registry returns a registry holding every built-in backend.
func Registry() *render.Registry {
	return render.NewRegistry(All()...)
}

// Tools maps each backend to the executables it runs by default, in the
// order they are invoked. The dot backend works without its tool.
var Tools = map[string][]string{
	dot.Name:      {"dot"},
	mermaid.Name:  {"mmdc"},
	plantuml.Name: {"plantuml"},
	tikz.Name:     {"pdflatex", "magick"},
	plot.Name:     {"python3"},
}

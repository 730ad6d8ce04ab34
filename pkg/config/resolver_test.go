package config

import (
	"reflect"
	"testing"

	"github.com/matzehuels/diagrender/pkg/document"
)

func block(attrs ...string) *document.CodeBlock {
	b := &document.CodeBlock{}
	for i := 0; i+1 < len(attrs); i += 2 {
		b.Attributes = append(b.Attributes, document.Attribute{Key: attrs[i], Value: attrs[i+1]})
	}
	return b
}

func TestLookup_BlockPrecedence(t *testing.T) {
	r := NewResolver("dot", block("format", "svg"),
		document.Metadata{"dot-image-format": "png"},
		document.Metadata{"dot-image-format": "pdf"})

	v := r.Lookup("format", "image-format", "png")
	if v.Value != "svg" || v.Source != SourceBlock {
		t.Errorf("Lookup() = %q from %s, want svg from block", v.Value, v.Source)
	}
	if v.Shadowed[SourceMetadata] != "png" || v.Shadowed[SourceConfig] != "pdf" {
		t.Errorf("Shadowed = %v", v.Shadowed)
	}
	if v.Key != "dot-image-format" {
		t.Errorf("Key = %q, want dot-image-format", v.Key)
	}
}

func TestLookup_MetadataFallback(t *testing.T) {
	r := NewResolver("dot", block(), document.Metadata{"dot-image-format": "png"}, nil)

	v := r.Lookup("format", "image-format", "gif")
	if v.Value != "png" || v.Source != SourceMetadata {
		t.Errorf("Lookup() = %q from %s, want png from metadata", v.Value, v.Source)
	}
}

func TestLookup_ConfigFallback(t *testing.T) {
	r := NewResolver("dot", block(), nil, document.Metadata{"dot-image-folder": "img"})

	if got := r.Optional("folder", "image-folder"); got != "img" {
		t.Errorf("Optional() = %q, want img", got)
	}
}

func TestLookup_Default(t *testing.T) {
	r := NewResolver("dot", block(), nil, nil)

	v := r.Lookup("format", "image-format", "png")
	if v.Value != "png" || v.Source != SourceDefault {
		t.Errorf("Lookup() = %q from %s, want png from default", v.Value, v.Source)
	}
	if len(v.Shadowed) != 0 {
		t.Errorf("Shadowed = %v, want empty", v.Shadowed)
	}
}

func TestLookup_EmptyAttributeFallsThrough(t *testing.T) {
	r := NewResolver("dot", block("format", ""), document.Metadata{"dot-image-format": "svg"}, nil)

	if got := r.String("format", "image-format", "png"); got != "svg" {
		t.Errorf("String() = %q, want svg", got)
	}
}

func TestLookup_MetadataOnly(t *testing.T) {
	r := NewResolver("plantuml", block("path", "/evil"), document.Metadata{"plantuml-path": "/opt/plantuml"}, nil)

	if got := r.String("", "path", "plantuml"); got != "/opt/plantuml" {
		t.Errorf("String() = %q, want /opt/plantuml", got)
	}
}

func TestLookup_WrongTypeIsAbsent(t *testing.T) {
	r := NewResolver("dot", block(), document.Metadata{"dot-image-format": []any{"svg"}}, nil)

	if got := r.String("format", "image-format", "png"); got != "png" {
		t.Errorf("String() = %q, want png", got)
	}
}

func TestBool(t *testing.T) {
	tests := []struct {
		name  string
		block *document.CodeBlock
		meta  document.Metadata
		def   bool
		want  bool
	}{
		{"attribute true", block("transparent", "true"), nil, false, true},
		{"attribute false beats metadata", block("transparent", "false"), document.Metadata{"plot-transparent": true}, false, false},
		{"metadata bool", block(), document.Metadata{"plot-transparent": true}, false, true},
		{"metadata string", block(), document.Metadata{"plot-transparent": "yes"}, false, true},
		{"default", block(), nil, true, true},
		{"empty attribute falls through", block("transparent", ""), document.Metadata{"plot-transparent": true}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver("plot", tt.block, tt.meta, nil)
			if got := r.Bool("transparent", "transparent", tt.def); got != tt.want {
				t.Errorf("Bool() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFlag(t *testing.T) {
	withClass := &document.CodeBlock{Classes: []string{"plot", "show"}}
	if !NewResolver("plot", withClass, nil, nil).Flag("show") {
		t.Error("Flag(show) with class = false, want true")
	}
	if !NewResolver("plot", block("show", ""), nil, nil).Flag("show") {
		t.Error("Flag(show) with bare attribute = false, want true")
	}
	if NewResolver("plot", block("show", "no"), nil, nil).Flag("show") {
		t.Error("Flag(show=no) = true, want false")
	}
	if NewResolver("plot", block(), nil, nil).Flag("show") {
		t.Error("Flag(show) without marker = true, want false")
	}
}

func TestList(t *testing.T) {
	r := NewResolver("tikz", block(),
		document.Metadata{"tikz-packages": []any{"arrows"}},
		document.Metadata{"tikz-packages": []any{"calc"}, "tikz-gdpackages": "trees"})

	if got := r.List("packages"); !reflect.DeepEqual(got, []string{"arrows"}) {
		t.Errorf("List(packages) = %v", got)
	}
	if got := r.List("gdpackages"); !reflect.DeepEqual(got, []string{"trees"}) {
		t.Errorf("List(gdpackages) = %v", got)
	}
	if got := r.List("missing"); got != nil {
		t.Errorf("List(missing) = %v, want nil", got)
	}
}

func TestGlobal(t *testing.T) {
	r := NewResolver("tikz", block(), document.Metadata{"magick-path": "/usr/bin/magick"}, nil)
	if got := r.Global("magick-path", "magick"); got != "/usr/bin/magick" {
		t.Errorf("Global() = %q", got)
	}
	r = NewResolver("tikz", block(), nil, nil)
	if got := r.Global("magick-path", "magick"); got != "magick" {
		t.Errorf("Global() default = %q", got)
	}
}

func TestResolved(t *testing.T) {
	r := NewResolver("dot", block("format", "svg"), nil, nil)
	r.String("format", "image-format", "png")
	r.Optional("folder", "image-folder")

	got := r.Resolved()
	if len(got) != 2 || got[0].Key != "dot-image-format" || got[1].Key != "dot-image-folder" {
		t.Errorf("Resolved() = %+v", got)
	}
}

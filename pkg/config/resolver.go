// Package config resolves render configuration for a code block and loads the
// diagrender tool configuration file.
//
// A value is resolved with this precedence:
//
//  1. the block attribute, when present and non-empty
//  2. the document metadata field "<backend>-<field>"
//  3. the tool configuration default for "<backend>-<field>"
//  4. the built-in default
//
// Resolution never fails: missing or wrongly typed values fall through to the
// next layer.
package config

import (
	"github.com/matzehuels/diagrender/pkg/document"
)

// Source indicates where a resolved value came from.
type Source string

const (
	// SourceBlock indicates the value came from a code block attribute.
	SourceBlock Source = "block"
	// SourceMetadata indicates the value came from document metadata.
	SourceMetadata Source = "metadata"
	// SourceConfig indicates the value came from the tool configuration file.
	SourceConfig Source = "config"
	// SourceDefault indicates the value is the built-in default.
	SourceDefault Source = "default"
)

// Value is a resolved configuration value and its provenance.
type Value struct {
	// Key is the metadata field name ("dot-image-format").
	Key string
	// Value is the resolved string value.
	Value string
	// Source indicates where Value came from.
	Source Source
	// Shadowed contains lower-precedence values that were overridden.
	Shadowed map[Source]string
}

// Resolver resolves configuration values for one code block and backend.
type Resolver struct {
	backend  string
	attrs    document.Attributes
	classes  []string
	meta     document.Metadata
	defaults document.Metadata

	resolved []Value
}

// NewResolver creates a resolver for a block rendered by backend. Either
// metadata layer may be nil.
func NewResolver(backend string, block *document.CodeBlock, meta, defaults document.Metadata) *Resolver {
	r := &Resolver{backend: backend, meta: meta, defaults: defaults}
	if block != nil {
		r.attrs = block.Attributes
		r.classes = block.Classes
	}
	return r
}

// Backend returns the backend name used as the metadata field prefix.
func (r *Resolver) Backend() string { return r.backend }

// Key returns the metadata field name for field.
func (r *Resolver) Key(field string) string {
	return r.backend + "-" + field
}

// Lookup resolves attr (block layer) and field (metadata layers) and reports
// where the value came from. An empty attr skips the block layer; an empty
// field skips both metadata layers.
func (r *Resolver) Lookup(attr, field, def string) Value {
	v := Value{Shadowed: make(map[Source]string)}
	if field != "" {
		v.Key = r.Key(field)
	} else {
		v.Key = attr
	}

	layers := []struct {
		source Source
		get    func() (string, bool)
	}{
		{SourceBlock, func() (string, bool) {
			if attr == "" {
				return "", false
			}
			return r.attrs.Get(attr)
		}},
		{SourceMetadata, func() (string, bool) {
			if field == "" {
				return "", false
			}
			return r.meta.String(v.Key)
		}},
		{SourceConfig, func() (string, bool) {
			if field == "" {
				return "", false
			}
			return r.defaults.String(v.Key)
		}},
	}

	for _, l := range layers {
		s, ok := l.get()
		if !ok || s == "" {
			continue
		}
		if v.Source == "" {
			v.Value, v.Source = s, l.source
		} else {
			v.Shadowed[l.source] = s
		}
	}

	if v.Source == "" {
		v.Value, v.Source = def, SourceDefault
	} else if def != "" {
		v.Shadowed[SourceDefault] = def
	}

	r.resolved = append(r.resolved, v)
	return v
}

// String resolves a string value.
func (r *Resolver) String(attr, field, def string) string {
	return r.Lookup(attr, field, def).Value
}

// Optional resolves a value that has no default, such as an output folder.
func (r *Resolver) Optional(attr, field string) string {
	return r.Lookup(attr, field, "").Value
}

// Attr returns a block attribute only. Used for passthrough directives such as
// width and height that have no metadata counterpart.
func (r *Resolver) Attr(name string) string {
	return r.attrs.Value(name)
}

// Bool resolves a boolean. A truthy block attribute string wins; otherwise a
// metadata boolean (or truthy string) is used; otherwise def.
func (r *Resolver) Bool(attr, field string, def bool) bool {
	if attr != "" {
		if s, ok := r.attrs.Get(attr); ok && s != "" {
			return document.Truthy(s)
		}
	}
	if field != "" {
		if b, ok := r.meta.Bool(r.Key(field)); ok {
			return b
		}
		if b, ok := r.defaults.Bool(r.Key(field)); ok {
			return b
		}
	}
	return def
}

// Flag reports whether the block carries class name, or an attribute name that
// is empty or truthy. This covers both the {.plot .show} and {.plot show=true}
// spellings.
func (r *Resolver) Flag(name string) bool {
	for _, c := range r.classes {
		if c == name {
			return true
		}
	}
	if s, ok := r.attrs.Get(name); ok {
		return s == "" || document.Truthy(s)
	}
	return false
}

// List resolves a metadata list. Document metadata wins over tool defaults.
func (r *Resolver) List(field string) []string {
	key := r.Key(field)
	if l := r.meta.List(key); l != nil {
		return l
	}
	return r.defaults.List(key)
}

// Global resolves a metadata field that is not prefixed by the backend name,
// such as "magick-path".
func (r *Resolver) Global(key, def string) string {
	if s, ok := r.meta.String(key); ok && s != "" {
		return s
	}
	if s, ok := r.defaults.String(key); ok && s != "" {
		return s
	}
	return def
}

// Resolved returns every value looked up so far, in lookup order.
func (r *Resolver) Resolved() []Value {
	return r.resolved
}

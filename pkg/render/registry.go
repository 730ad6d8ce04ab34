package render

import (
	"sort"

	"github.com/matzehuels/diagrender/pkg/document"
	"github.com/matzehuels/diagrender/pkg/errors"
)

// Registry maps code block classes to backends.
type Registry struct {
	byName  map[string]Backend
	byClass map[string]Backend
}

// NewRegistry creates a registry holding backends. It panics on a duplicate
// name or class, which is a programming error.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{
		byName:  make(map[string]Backend),
		byClass: make(map[string]Backend),
	}
	for _, b := range backends {
		if err := r.Register(b); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds a backend.
func (r *Registry) Register(b Backend) error {
	if _, ok := r.byName[b.Name()]; ok {
		return errors.New(errors.ErrCodeInternal, "backend %q registered twice", b.Name())
	}
	for _, c := range b.Classes() {
		if other, ok := r.byClass[c]; ok {
			return errors.New(errors.ErrCodeInternal, "class %q claimed by %s and %s", c, other.Name(), b.Name())
		}
	}
	r.byName[b.Name()] = b
	for _, c := range b.Classes() {
		r.byClass[c] = b
	}
	return nil
}

// Get returns the backend with the given name.
func (r *Registry) Get(name string) (Backend, bool) {
	b, ok := r.byName[name]
	return b, ok
}

// Match returns the backend selected by the first matching class of block.
func (r *Registry) Match(block *document.CodeBlock) (Backend, bool) {
	for _, c := range block.Classes {
		if b, ok := r.byClass[c]; ok {
			return b, true
		}
	}
	return nil, false
}

// Backends returns all backends sorted by name.
func (r *Registry) Backends() []Backend {
	out := make([]Backend, 0, len(r.byName))
	for _, b := range r.byName {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

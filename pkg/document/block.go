package document

import "slices"

// Attribute is a single key=value pair attached to a code block.
type Attribute struct {
	Key   string
	Value string
}

// Attributes is the ordered attribute list of a code block.
type Attributes []Attribute

// Get returns the value of the first attribute named key.
func (a Attributes) Get(key string) (string, bool) {
	for _, attr := range a {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// Value returns the value of key, or the empty string when absent.
func (a Attributes) Value(key string) string {
	v, _ := a.Get(key)
	return v
}

// Has reports whether an attribute named key is present, even if empty.
func (a Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Map returns the attributes as a map. Later duplicates do not override
// earlier ones, matching Get.
func (a Attributes) Map() map[string]string {
	m := make(map[string]string, len(a))
	for _, attr := range a {
		if _, ok := m[attr.Key]; !ok {
			m[attr.Key] = attr.Value
		}
	}
	return m
}

// CodeBlock is a code block handed to the renderer by the host pipeline.
type CodeBlock struct {
	// Text is the block source without the trailing newline.
	Text string

	// ID is the optional block identifier (#id).
	ID string

	// Classes are the block classes (.dot, .plot, ...). The first class is
	// usually the language.
	Classes []string

	// Attributes are the key=value pairs in declaration order.
	Attributes Attributes

	// Format is the output format of the enclosing document, e.g. "latex" or "html".
	Format string

	// Start and End are the byte offsets of the whole fenced block, fences
	// included, when the block was parsed from a markdown source.
	Start, End int
}

// HasClass reports whether the block carries class c.
func (b *CodeBlock) HasClass(c string) bool {
	return slices.Contains(b.Classes, c)
}

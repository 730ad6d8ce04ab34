package document

import (
	"fmt"
	"maps"
	"strings"
)

// Metadata is document-wide configuration keyed by field name.
// Values are strings, booleans or lists of strings.
type Metadata map[string]any

// String returns the field as a string. Booleans and numbers are formatted;
// lists and maps are treated as absent.
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return "", false
	}
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		if x {
			return "true", true
		}
		return "false", true
	case int, int64, uint64, float64, float32, int32, uint32, uint:
		return fmt.Sprint(x), true
	}
	return "", false
}

// Bool returns the field as a boolean. Strings are parsed with [Truthy];
// other types are treated as absent.
func (m Metadata) Bool(key string) (bool, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return false, false
	}
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		return Truthy(x), true
	}
	return false, false
}

// List returns the field as a list of strings. A single string becomes a
// one-element list; non-scalar list items are skipped.
func (m Metadata) List(key string) []string {
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		if x == "" {
			return nil
		}
		return []string{x}
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			switch s := item.(type) {
			case string:
				out = append(out, s)
			case bool, int, int64, float64:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out
	}
	return nil
}

// Merge returns a new Metadata with the fields of m laid over base.
func (m Metadata) Merge(base Metadata) Metadata {
	out := make(Metadata, len(base)+len(m))
	maps.Copy(out, base)
	maps.Copy(out, m)
	return out
}

// Truthy reports whether s spells a true value: "true", "yes", "on" or "1",
// case-insensitively.
func Truthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true
	}
	return false
}

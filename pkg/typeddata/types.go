package typeddata

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Field is one named member of a struct declaration.
type Field struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// Types maps struct names to their ordered fields. Field order is hash
// significant and is never re-sorted.
type Types map[string][]Field

// Clone returns a deep copy of t.
func (t Types) Clone() Types {
	out := make(Types, len(t))
	for name, fields := range t {
		out[name] = append([]Field(nil), fields...)
	}
	return out
}

// Names returns the declared type names in lexicographic order.
func (t Types) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseTypesYAML decodes declarations written as
//
//	Mail:
//	  - {name: from, type: address}
//	  - {name: contents, type: string}
func ParseTypesYAML(data []byte) (Types, error) {
	var types Types
	if err := yaml.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("decode type declarations: %w", err)
	}
	return types, nil
}

func fieldsEqual(a, b []Field) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// FormatFields renders fields as the comma separated "type name" list used
// inside a type string.
func FormatFields(fields []Field) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		parts[i] = f.Type + " " + f.Name
	}
	return strings.Join(parts, ",")
}

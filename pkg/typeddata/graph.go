package typeddata

import (
	"sort"
	"strings"

	"github.com/eidos-exchange/eidos/eidos-typeddata/pkg/errors"
)

// forbidden in type and field names; any of them would make canonical type
// strings ambiguous.
const nameReserved = "[](), "

// typeGraph is the resolved reference structure of a declaration set.
type typeGraph struct {
	names    []string            // declared types, sorted
	links    map[string][]string // struct types referenced by each type's fields
	parents  map[string][]string // types whose fields reference each type
	closures map[string][]string // transitive dependencies, sorted, self excluded
	primary  string
}

func buildGraph(types Types) (*typeGraph, error) {
	g := &typeGraph{
		names:    types.Names(),
		links:    make(map[string][]string, len(types)),
		parents:  make(map[string][]string, len(types)),
		closures: make(map[string][]string, len(types)),
	}

	for _, name := range g.names {
		if err := checkName(name, "type"); err != nil {
			return nil, err
		}
		if isScalarGrammar(name) {
			return nil, errors.ErrInvalidTypeName.
				WithMessagef("invalid type name %q: shadows a built-in type", name).
				WithDetail("type", name)
		}
	}

	for _, name := range g.names {
		seen := make(map[string]struct{}, len(types[name]))
		linked := make(map[string]struct{})

		for _, field := range types[name] {
			if err := checkName(field.Name, "field"); err != nil {
				return nil, err.WithDetail("type", name)
			}
			if _, dup := seen[field.Name]; dup {
				return nil, errors.ErrDuplicateField.
					WithMessagef("duplicate field name %q in %s", field.Name, name).
					WithDetails(map[string]string{"type": name, "field": field.Name})
			}
			seen[field.Name] = struct{}{}

			base := baseType(field.Type)
			if base == name {
				return nil, circular(name)
			}
			if _, matched, err := parseScalar(base); matched {
				if err != nil {
					return nil, err
				}
				continue
			}
			if _, declared := types[base]; !declared {
				return nil, unknownType(field.Type).WithDetail("field", name+"."+field.Name)
			}

			if _, dup := linked[base]; !dup {
				linked[base] = struct{}{}
				g.links[name] = append(g.links[name], base)
				g.parents[base] = append(g.parents[base], name)
			}
		}
	}

	// cycles are reported before primary selection; a pure cycle has no
	// unreferenced type at all
	for _, name := range g.names {
		if _, err := g.closure(name); err != nil {
			return nil, err
		}
	}

	var candidates []string
	for _, name := range g.names {
		if len(g.parents[name]) == 0 {
			candidates = append(candidates, name)
		}
	}
	switch len(candidates) {
	case 0:
		return nil, errors.ErrMissingPrimaryType
	case 1:
		g.primary = candidates[0]
	default:
		return nil, errors.ErrAmbiguousPrimary.
			WithMessagef("ambiguous primary types or unused types: %s", strings.Join(candidates, ", ")).
			WithDetail("candidates", strings.Join(candidates, ","))
	}

	return g, nil
}

// closure returns every struct type transitively reachable from name,
// sorted and excluding name itself. Only called while the graph is being
// built, so the memo needs no locking.
func (g *typeGraph) closure(name string) ([]string, error) {
	if c, ok := g.closures[name]; ok {
		return c, nil
	}

	found := make(map[string]struct{})
	if err := g.walk(name, found, make(map[string]bool)); err != nil {
		return nil, err
	}
	delete(found, name)

	subs := make([]string, 0, len(found))
	for sub := range found {
		subs = append(subs, sub)
	}
	sort.Strings(subs)
	g.closures[name] = subs
	return subs, nil
}

func (g *typeGraph) walk(name string, found map[string]struct{}, onPath map[string]bool) error {
	if onPath[name] {
		return circular(name)
	}
	if _, done := found[name]; done {
		return nil
	}
	found[name] = struct{}{}
	onPath[name] = true
	for _, child := range g.links[name] {
		if err := g.walk(child, found, onPath); err != nil {
			return err
		}
	}
	onPath[name] = false
	return nil
}

func checkName(name, what string) *errors.Error {
	if name == "" {
		return errors.ErrInvalidTypeName.WithMessagef("empty %s name", what)
	}
	if strings.ContainsAny(name, nameReserved) {
		return errors.ErrInvalidTypeName.
			WithMessagef("invalid %s name %q", what, name).
			WithDetail(what, name)
	}
	return nil
}

func circular(name string) *errors.Error {
	return errors.ErrCircularReference.
		WithMessagef("circular type reference to %q", name).
		WithDetail("type", name)
}

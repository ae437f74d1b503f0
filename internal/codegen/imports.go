package codegen

import (
	"fmt"
	"sort"
	"strings"
)

// ImportSet collects ES module imports by source path, de-duplicating
// repeated bindings, and renders them in sorted, diff-friendly order.
type ImportSet struct {
	defaults   map[string]string
	named      map[string]map[string]string
	sideEffect map[string]bool
}

// NewImportSet returns an empty ImportSet.
func NewImportSet() *ImportSet {
	return &ImportSet{
		defaults:   make(map[string]string),
		named:      make(map[string]map[string]string),
		sideEffect: make(map[string]bool),
	}
}

// Default registers `import <binding> from "<path>"`.
func (s *ImportSet) Default(path, binding string) {
	s.defaults[path] = binding
}

// Named registers `import { <name> as <alias> } from "<path>"`. If
// alias equals name, the "as" clause is omitted on render.
func (s *ImportSet) Named(path, name, alias string) {
	if s.named[path] == nil {
		s.named[path] = make(map[string]string)
	}
	s.named[path][name] = alias
}

// SideEffect registers a bare `import "<path>"`.
func (s *ImportSet) SideEffect(path string) {
	s.sideEffect[path] = true
}

// Render returns one line per imported path, sorted by path, combining
// a path's default and named bindings onto a single line.
func (s *ImportSet) Render() []string {
	paths := make(map[string]bool)
	for p := range s.defaults {
		paths[p] = true
	}
	for p := range s.named {
		paths[p] = true
	}
	for p := range s.sideEffect {
		paths[p] = true
	}

	sorted := make([]string, 0, len(paths))
	for p := range paths {
		sorted = append(sorted, p)
	}
	sort.Strings(sorted)

	lines := make([]string, 0, len(sorted))
	for _, p := range sorted {
		def, hasDefault := s.defaults[p]
		names, hasNamed := s.named[p]

		if !hasDefault && !hasNamed {
			lines = append(lines, fmt.Sprintf("import %q;", p))
			continue
		}

		var clauses []string
		if hasDefault {
			clauses = append(clauses, def)
		}
		if hasNamed {
			clauses = append(clauses, "{ "+renderNamed(names)+" }")
		}
		lines = append(lines, fmt.Sprintf("import %s from %q;", strings.Join(clauses, ", "), p))
	}
	return lines
}

func renderNamed(names map[string]string) string {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		alias := names[k]
		if alias == "" || alias == k {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, fmt.Sprintf("%s as %s", k, alias))
	}
	return strings.Join(parts, ", ")
}

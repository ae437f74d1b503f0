// Package codegen is a small code-builder abstraction for the
// generated JavaScript sources this module emits (the production
// backend entry, the frontend mount entry, the build-time head probe).
// Output is always sorted and
// indentation-tracked so two builds of the same inputs produce
// byte-identical text, per spec §9's determinism requirement.
package codegen

import (
	"fmt"
	"strings"
)

// Builder accumulates indented lines and an import collection, and
// renders them as one deterministic source file.
type Builder struct {
	imports *ImportSet
	lines   []string
	indent  int
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{imports: NewImportSet()}
}

// Imports exposes the builder's import collector.
func (b *Builder) Imports() *ImportSet {
	return b.imports
}

// Line appends one formatted, indented line.
func (b *Builder) Line(format string, args ...any) *Builder {
	b.lines = append(b.lines, strings.Repeat("  ", b.indent)+fmt.Sprintf(format, args...))
	return b
}

// Blank appends an empty line.
func (b *Builder) Blank() *Builder {
	b.lines = append(b.lines, "")
	return b
}

// Block runs fn with the indent level increased by one, used for the
// body of a function, if-statement, or object literal.
func (b *Builder) Block(open string, fn func(), close string) *Builder {
	b.Line("%s", open)
	b.indent++
	fn()
	b.indent--
	b.Line("%s", close)
	return b
}

// String renders the collected imports followed by a blank line and
// the accumulated body.
func (b *Builder) String() string {
	var out strings.Builder
	importLines := b.imports.Render()
	if len(importLines) > 0 {
		out.WriteString(strings.Join(importLines, "\n"))
		out.WriteString("\n\n")
	}
	out.WriteString(strings.Join(b.lines, "\n"))
	if len(b.lines) > 0 {
		out.WriteString("\n")
	}
	return out.String()
}

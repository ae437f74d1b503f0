package transform

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"peaque.dev/peaque/internal/peaqueerr"
)

// ExportedFunction is one function exported from a 'use server' module.
type ExportedFunction struct {
	Name string
}

// Shim is the generated client-side replacement for a 'use server'
// module.
type Shim struct {
	ModulePath string
	Exports    []ExportedFunction
	Source     string
}

var useServerDirective = []string{"'use server'", "\"use server\""}

// HasUseServerDirective reports whether source begins (after leading
// whitespace) with the 'use server' directive, in either quote style.
func HasUseServerDirective(source string) bool {
	trimmed := strings.TrimLeft(source, " \t\r\n")
	for _, d := range useServerDirective {
		if strings.HasPrefix(trimmed, d) {
			return true
		}
	}
	return false
}

// GenerateShim parses source with the TypeScript grammar, enumerates
// its top-level exports, verifies each exported function is
// asynchronous, and emits the RPC-calling stub module described in
// spec §4.C.
func GenerateShim(source []byte, modulePath string) (*Shim, error) {
	if strings.Contains(string(source), "export *") || strings.Contains(string(source), "export * from") {
		return nil, peaqueerr.New(peaqueerr.Source, "%s: export * is not allowed in a 'use server' module", modulePath)
	}

	decls, err := parseTopLevelExports(source)
	if err != nil {
		return nil, peaqueerr.Wrap(peaqueerr.Source, err, "%s: failed to parse module", modulePath)
	}

	exports := make([]ExportedFunction, 0, len(decls))
	for _, d := range decls {
		if d.isReexport {
			// A re-export's async-ness lives in its origin module,
			// not this file, so it can't be verified here; it is
			// still part of this module's public interface and must
			// be passed through to the generated shim rather than
			// dropped.
			exports = append(exports, ExportedFunction{Name: d.name})
			continue
		}
		if !d.isFunction {
			continue
		}
		if !d.isAsync {
			return nil, peaqueerr.New(peaqueerr.Source, "%s is not async", d.name)
		}
		exports = append(exports, ExportedFunction{Name: d.name})
	}

	return &Shim{
		ModulePath: modulePath,
		Exports:    exports,
		Source:     renderShim(modulePath, exports),
	}, nil
}

type exportDecl struct {
	name       string
	isFunction bool
	isAsync    bool
	// isReexport marks a binding named by a "export { ... } [from '...']"
	// clause: a name this module re-exports from elsewhere (or from
	// earlier in this same file). Its async-ness is determined at its
	// origin, not here.
	isReexport bool
}

// parseTopLevelExports walks the Program node's direct children with
// tree-sitter's TypeScript grammar, classifying each export statement.
// Async-ness is decided from the declaration text itself (the
// grammar's job here is reliably splitting the source into top-level
// statements; the async keyword's presence at the front of a function
// or arrow declaration is unambiguous once a statement's bounds are
// known).
func parseTopLevelExports(source []byte) ([]exportDecl, error) {
	parser := tree_sitter.NewParser()
	defer parser.Close()

	lang := tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
	if err := parser.SetLanguage(lang); err != nil {
		return nil, err
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter produced no parse tree")
	}
	defer tree.Close()

	root := tree.RootNode()
	var decls []exportDecl

	for i := uint(0); i < root.ChildCount(); i++ {
		child := root.Child(i)
		if child == nil || child.Kind() != "export_statement" {
			continue
		}
		text := child.Utf8Text(source)
		decls = append(decls, classifyExport(text)...)
	}

	return decls, nil
}

// classifyExport derives zero or more exportDecl entries from the text
// of a single top-level "export_statement" node. It recognizes named
// function declarations, default-exported functions, named const/let
// declarations, and named re-export clauses ("export { a, b as c }",
// with or without a trailing "from '...'"), which are enumerated as
// isReexport entries since their async-ness is determined at their
// origin rather than here. A const/let statement yields only its first
// declarator, and that declarator is treated as a function whatever
// its initializer, so a non-async initializer is reported as not async.
func classifyExport(text string) []exportDecl {
	body := strings.TrimSpace(strings.TrimPrefix(text, "export"))
	isDefault := strings.HasPrefix(body, "default")
	if isDefault {
		body = strings.TrimSpace(strings.TrimPrefix(body, "default"))
	}

	switch {
	case strings.HasPrefix(body, "async function"):
		name := functionName(body, isDefault)
		return []exportDecl{{name: name, isFunction: true, isAsync: true}}
	case strings.HasPrefix(body, "function"):
		name := functionName(body, isDefault)
		return []exportDecl{{name: name, isFunction: true, isAsync: false}}
	case strings.HasPrefix(body, "const") || strings.HasPrefix(body, "let"):
		return classifyVariableExport(body)
	case strings.HasPrefix(body, "{"):
		return classifyReexport(body)
	default:
		return nil
	}
}

func functionName(body string, isDefault bool) string {
	body = strings.TrimPrefix(body, "async")
	body = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), "function"))
	body = strings.TrimPrefix(body, "*")
	end := strings.IndexAny(body, "( \t\n")
	if end < 0 {
		end = len(body)
	}
	name := strings.TrimSpace(body[:end])
	if name == "" && isDefault {
		return "default"
	}
	return name
}

func classifyVariableExport(body string) []exportDecl {
	body = strings.TrimPrefix(body, "const")
	body = strings.TrimPrefix(body, "let")
	body = strings.TrimSpace(body)

	eq := strings.Index(body, "=")
	if eq < 0 {
		return nil
	}
	name := strings.TrimSpace(body[:eq])
	if idx := strings.IndexAny(name, ": "); idx >= 0 {
		name = name[:idx]
	}
	rhs := strings.TrimSpace(body[eq+1:])
	isAsync := strings.HasPrefix(rhs, "async")
	return []exportDecl{{name: name, isFunction: true, isAsync: isAsync}}
}

// classifyReexport parses the named binding list of a re-export clause
// ("{ foo, bar as baz }", optionally followed by "from '...'") into one
// exportDecl per binding, keyed by its exported name (the alias, when
// one is given). It does not attempt to resolve the "from" target;
// that module isn't available to this single-file parse.
func classifyReexport(body string) []exportDecl {
	if !strings.HasPrefix(body, "{") {
		return nil
	}
	end := strings.Index(body, "}")
	if end < 0 {
		return nil
	}

	var decls []exportDecl
	for _, part := range strings.Split(body[1:end], ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name := part
		if idx := strings.Index(part, " as "); idx >= 0 {
			name = strings.TrimSpace(part[idx+len(" as "):])
		}
		decls = append(decls, exportDecl{name: name, isReexport: true})
	}
	return decls
}

func renderShim(modulePath string, exports []ExportedFunction) string {
	var b strings.Builder
	b.WriteString("import { encode, decode } from \"/peaque-wire.js\";\n\n")
	fmt.Fprintf(&b, "async function __peaqueRpcCall(fn, args) {\n")
	fmt.Fprintf(&b, "  const res = await fetch(%q + fn, {\n", "/api/__rpc/"+modulePath+"/")
	b.WriteString("    method: \"POST\",\n")
	b.WriteString("    headers: { \"Content-Type\": \"application/json\" },\n")
	b.WriteString("    body: encode({ args }),\n")
	b.WriteString("  });\n")
	b.WriteString("  const text = await res.text();\n")
	b.WriteString("  if (!res.ok) throw new Error(text);\n")
	b.WriteString("  return decode(text);\n")
	b.WriteString("}\n\n")

	for _, e := range exports {
		if e.Name == "default" {
			fmt.Fprintf(&b, "export default (...args) => __peaqueRpcCall(%q, args);\n", e.Name)
			continue
		}
		fmt.Fprintf(&b, "export const %s = (...args) => __peaqueRpcCall(%q, args);\n", e.Name, e.Name)
	}
	return b.String()
}

// Package entrygen generates the small frontend mount module described
// in spec §4.H, shared by the dev server's on-demand /peaque.js
// handler and the production builder's bundling step so both emit
// exactly the same route registrations for a given page tree.
package entrygen

import (
	"peaque.dev/peaque/internal/codegen"
	"peaque.dev/peaque/internal/routetree"
)

// pageEntry pairs a matched page node's URL pattern with its page
// component's import binding.
type pageEntry struct {
	pattern string
	binding routetree.ImportBinding
}

// Frontend emits the generated module that imports every page
// component reachable from tree and registers it with the client
// router at mount(root), keyed by the route's URL pattern (the key
// internal/runtimeassets.LoaderJS's createRouter looks up by
// location.pathname). Layouts, guards, heads, and middleware are not
// routable components and are never registered here; they need a
// different composition mechanism (nested layout wrapping, guard
// gating) that this entry does not yet build. srcPrefix is the
// project-relative directory the tree was built from (e.g.
// "src/pages"), since FileRef paths are relative to that root rather
// than to "/@src/"'s project root.
func Frontend(tree *routetree.Node, srcPrefix string) string {
	b := codegen.New()
	if tree == nil {
		b.Line("export function mount() {}")
		return b.String()
	}

	b.Imports().Named("/peaque-loader.js", "createRouter", "createRouter")

	var pages []pageEntry
	routetree.Walk(tree, func(n *routetree.Node) {
		ref, ok := n.Names[routetree.RolePage]
		if !ok {
			return
		}
		pages = append(pages, pageEntry{
			pattern: n.Pattern,
			binding: routetree.ImportBinding{Identifier: ref.Identifier, ImportPath: ref.Path},
		})
	})

	for _, p := range pages {
		b.Imports().Default("/@src/"+srcPrefix+"/"+p.binding.ImportPath, p.binding.Identifier)
	}

	b.Block("export function mount(root) {", func() {
		b.Line("const router = createRouter(root);")
		for _, p := range pages {
			b.Line("router.register(%q, %s);", p.pattern, p.binding.Identifier)
		}
		b.Line("router.start();")
	}, "}")

	return b.String()
}

package routetree

import (
	"strings"

	"peaque.dev/peaque/internal/platform"
)

// PatternConfig declares how a single filename participates in tree
// construction: which role it binds, whether it stacks (appends to an
// inherited sequence) or is scalar (a single per-node binding), and
// whether its presence marks the node as a match target.
type PatternConfig struct {
	Filename string
	Role     Role
	Stacks   bool
	Accept   bool
}

// PageConfig is the route-file configuration for src/pages.
var PageConfig = []PatternConfig{
	{Filename: "page.tsx", Role: RolePage, Accept: true},
	{Filename: "layout.tsx", Role: RoleLayout, Stacks: true},
	{Filename: "guard.ts", Role: RoleGuard, Stacks: true},
	{Filename: "head.ts", Role: RoleHeads, Stacks: true},
	{Filename: "middleware.ts", Role: RoleMiddleware},
}

// APIConfig is the route-file configuration for src/api.
var APIConfig = []PatternConfig{
	{Filename: "route.ts", Role: RoleHandler, Accept: true},
	{Filename: "middleware.ts", Role: RoleMiddleware, Stacks: true},
}

func configFor(name string, configs []PatternConfig) (PatternConfig, bool) {
	for _, c := range configs {
		if c.Filename == name {
			return c, true
		}
	}
	return PatternConfig{}, false
}

// Build walks root using fsys and produces the root Node of a route
// tree honoring configs. A missing root directory yields an empty
// (accept-free) tree rather than an error.
func Build(fsys platform.FileSystem, root string, configs []PatternConfig) (*Node, error) {
	root = platform.NormalizePath(root)
	if !fsys.Exists(root) {
		return newNode(""), nil
	}
	n, err := buildDir(fsys, root, "", configs)
	if err != nil {
		return nil, err
	}
	flattenStacks(n, nil)
	assignPatterns(n, "")
	assignIdentifiers(n)
	return n, nil
}

func buildDir(fsys platform.FileSystem, dirPath string, relPath string, configs []PatternConfig) (*Node, error) {
	node := newNode(segmentOf(relPath))

	entries, err := fsys.ReadDir(dirPath)
	if err != nil {
		return node, nil
	}

	for _, entry := range entries {
		childDirPath := dirPath + "/" + entry.Name()
		childRelPath := joinRel(relPath, entry.Name())

		if entry.IsDir() {
			child, err := buildDir(fsys, childDirPath, childRelPath, configs)
			if err != nil {
				return nil, err
			}
			attachChild(node, entry.Name(), child)
			continue
		}

		cfg, ok := configFor(entry.Name(), configs)
		if !ok {
			continue
		}
		ref := FileRef{Path: childRelPath}
		if cfg.Stacks {
			node.ownStacks[cfg.Role] = append(node.ownStacks[cfg.Role], ref)
		} else {
			node.Names[cfg.Role] = ref
		}
		if cfg.Accept {
			node.Accept = true
		}
	}

	return node, nil
}

// attachChild classifies a directory name and installs child at the
// right slot on parent: [name] -> param, [...name] -> wildcard,
// (name) -> static+excluded, otherwise a plain static child.
func attachChild(parent *Node, dirName string, child *Node) {
	switch {
	case strings.HasPrefix(dirName, "[...") && strings.HasSuffix(dirName, "]"):
		child.ParamName = dirName[4 : len(dirName)-1]
		parent.WildcardChild = child
	case strings.HasPrefix(dirName, "[") && strings.HasSuffix(dirName, "]"):
		child.ParamName = dirName[1 : len(dirName)-1]
		parent.ParamChild = child
	case strings.HasPrefix(dirName, "(") && strings.HasSuffix(dirName, ")"):
		child.ExcludeFromPath = true
		parent.StaticChildren[dirName] = child
	default:
		parent.StaticChildren[dirName] = child
	}
}

func segmentOf(relPath string) string {
	idx := strings.LastIndex(relPath, "/")
	if idx < 0 {
		return relPath
	}
	return relPath[idx+1:]
}

func joinRel(relPath, name string) string {
	if relPath == "" {
		return name
	}
	return relPath + "/" + name
}

// flattenStacks propagates parent stacks into every descendant:
// child.Stacks[role] = parent.Stacks[role] ++ child.ownStacks[role].
// Scalar Names never inherit.
func flattenStacks(n *Node, parentStacks map[Role][]FileRef) {
	n.Stacks = make(map[Role][]FileRef, len(n.ownStacks))
	for role, own := range n.ownStacks {
		combined := make([]FileRef, 0, len(parentStacks[role])+len(own))
		combined = append(combined, parentStacks[role]...)
		combined = append(combined, own...)
		n.Stacks[role] = combined
	}
	for role, inherited := range parentStacks {
		if _, ok := n.Stacks[role]; !ok {
			n.Stacks[role] = inherited
		}
	}

	for _, key := range n.sortedStaticKeys() {
		flattenStacks(n.StaticChildren[key], n.Stacks)
	}
	if n.ParamChild != nil {
		flattenStacks(n.ParamChild, n.Stacks)
	}
	if n.WildcardChild != nil {
		flattenStacks(n.WildcardChild, n.Stacks)
	}
}

// assignPatterns computes the full URL pattern for every node,
// skipping excluded (group) segments.
func assignPatterns(n *Node, prefix string) {
	n.Pattern = prefix
	if n.Pattern == "" {
		n.Pattern = "/"
	}

	for _, key := range n.sortedStaticKeys() {
		child := n.StaticChildren[key]
		childPrefix := prefix
		if !child.ExcludeFromPath {
			childPrefix = joinPattern(prefix, key)
		}
		assignPatterns(child, childPrefix)
	}
	if n.ParamChild != nil {
		assignPatterns(n.ParamChild, joinPattern(prefix, ":"+n.ParamChild.ParamName))
	}
	if n.WildcardChild != nil {
		assignPatterns(n.WildcardChild, joinPattern(prefix, "*"+n.WildcardChild.ParamName))
	}
}

func joinPattern(prefix, segment string) string {
	if prefix == "" || prefix == "/" {
		return "/" + segment
	}
	return prefix + "/" + segment
}

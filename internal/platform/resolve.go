package platform

// SourceExtensions is the ordered list of suffixes tried when resolving
// a module path to a concrete source file, per spec §4.E's "/@src/<p>"
// resolution order and §4.F's module-path resolution (the dispatcher
// resolves through the same candidate list the dev server uses).
var SourceExtensions = []string{
	"",
	".ts",
	".tsx",
	".js",
	".jsx",
	"/index.ts",
	"/index.tsx",
	"/index.js",
	"/index.jsx",
}

// ResolveSource tries each of SourceExtensions against modulePath,
// joined under root, returning the first candidate that both resolves
// under root (no "../" escape) and names a regular file. It returns
// ("", false) if nothing matches.
func ResolveSource(fsys FileSystem, root, modulePath string) (string, bool) {
	for _, suffix := range SourceExtensions {
		candidate, ok := UnderRoot(root, modulePath+suffix)
		if !ok {
			continue
		}
		info, err := fsys.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return candidate, true
	}
	return "", false
}

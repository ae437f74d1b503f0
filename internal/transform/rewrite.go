package transform

import (
	"path"
	"regexp"
	"strings"
)

// AliasMap is a tsconfig-style "paths" map: alias prefix -> resolved
// target prefix, e.g. {"@/*": "src/*"}.
type AliasMap map[string]string

var jsExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

var (
	staticImportRe = regexp.MustCompile(`(?m)(\bimport\s+(?:[^'"\n]*?\bfrom\s+)?)(['"])([^'"]+)(['"])`)
	dynamicImportRe = regexp.MustCompile(`(\bimport\s*\(\s*)(['"])([^'"]+)(['"])(\s*\))`)
)

// RewriteImports rewrites every static and dynamic import specifier in
// source according to spec §4.C's ordered rules. fileDir is the
// project-relative directory of the file being rewritten, used to
// resolve relative specifiers.
func RewriteImports(source string, fileDir string, aliases AliasMap) string {
	out := staticImportRe.ReplaceAllStringFunc(source, func(m string) string {
		parts := staticImportRe.FindStringSubmatch(m)
		return parts[1] + parts[2] + resolveSpecifier(parts[3], fileDir, aliases) + parts[4]
	})
	out = dynamicImportRe.ReplaceAllStringFunc(out, func(m string) string {
		parts := dynamicImportRe.FindStringSubmatch(m)
		return parts[1] + parts[2] + resolveSpecifier(parts[3], fileDir, aliases) + parts[4] + parts[5]
	})
	return out
}

// resolveSpecifier applies the ordered rewrite rules of spec §4.C.
func resolveSpecifier(spec, fileDir string, aliases AliasMap) string {
	if strings.HasPrefix(spec, "/@deps/") || strings.HasPrefix(spec, "/@src/") {
		return spec
	}

	if strings.HasPrefix(spec, "./") || strings.HasPrefix(spec, "../") {
		resolved := path.Join(fileDir, spec)
		resolved = stripKnownExtension(resolved)
		return "/@src/" + resolved
	}

	if target, ok := matchAlias(spec, aliases); ok {
		return "/@src/" + target
	}

	if strings.HasPrefix(spec, "/") {
		return "/@src/" + strings.TrimPrefix(spec, "/")
	}

	return "/@deps/" + spec
}

// matchAlias resolves a bare specifier against a tsconfig-style "paths"
// map entry of the form "@foo/*" -> "src/foo/*".
func matchAlias(spec string, aliases AliasMap) (string, bool) {
	for pattern, target := range aliases {
		if !strings.Contains(pattern, "*") {
			if spec == pattern {
				return target, true
			}
			continue
		}
		prefix := strings.TrimSuffix(pattern, "*")
		if strings.HasPrefix(spec, prefix) {
			rest := strings.TrimPrefix(spec, prefix)
			return strings.TrimSuffix(target, "*") + rest, true
		}
	}
	return "", false
}

func stripKnownExtension(p string) string {
	for _, ext := range jsExtensions {
		if strings.HasSuffix(p, ext) {
			return strings.TrimSuffix(p, ext)
		}
	}
	return p
}

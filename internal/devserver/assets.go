package devserver

import (
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"peaque.dev/peaque/internal/entrygen"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
	"peaque.dev/peaque/internal/transform"
)

// serveSrc implements the "/@src/<p>" family: resolve p against the
// ordered candidate list, transform the winning source through the
// cache, and write it as JS.
func (s *Server) serveSrc(w http.ResponseWriter, r *http.Request, p string) {
	joined := platform.NormalizePath(path.Join(s.cfg.Root, p))
	root := platform.NormalizePath(s.cfg.Root)
	if joined != root && !strings.HasPrefix(joined, root+"/") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	full, ok := platform.ResolveSource(s.fsys, s.cfg.Root, p)
	if !ok {
		http.NotFound(w, r)
		return
	}

	source, err := s.fsys.ReadFile(full)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(full, root), "/")

	if transform.HasUseServerDirective(string(source)) {
		shim, err := transform.GenerateShim(source, rel)
		if err != nil {
			msg, _ := json.Marshal(err.Error())
			w.Header().Set("Content-Type", "application/javascript")
			_, _ = w.Write([]byte("throw new Error(" + string(msg) + ");\n"))
			return
		}
		w.Header().Set("Content-Type", "application/javascript")
		_, _ = w.Write([]byte(shim.Source))
		return
	}

	key := rel
	hash := contentHash(source)
	code, err := s.cache.GetOrProduce(key, hash, func() ([]byte, error) {
		return s.transformFile(rel, source)
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write(code)
}

func (s *Server) transformFile(rel string, source []byte) ([]byte, error) {
	loader := loaderFor(rel)
	result, err := transform.TransformTypeScript(source, transform.TransformOptions{Loader: loader})
	if err != nil {
		return nil, err
	}
	dir := path.Dir(rel)
	rewritten := transform.RewriteImports(string(result.Code), dir, nil)
	if strings.HasSuffix(rel, ".tsx") {
		rewritten = transform.WrapFastRefresh(rewritten, rel)
	}
	return []byte(rewritten), nil
}

func loaderFor(p string) transform.Loader {
	switch {
	case strings.HasSuffix(p, ".tsx"):
		return transform.LoaderTSX
	case strings.HasSuffix(p, ".jsx"):
		return transform.LoaderJSX
	case strings.HasSuffix(p, ".css"):
		return transform.LoaderCSS
	case strings.HasSuffix(p, ".js"):
		return transform.LoaderJS
	default:
		return transform.LoaderTS
	}
}

// serveDep implements "/@deps/<name>": bundle a node_modules package on
// demand and return the bundled JS.
func (s *Server) serveDep(w http.ResponseWriter, r *http.Request, name string) {
	key := "dep:" + name
	entry := "export * from " + strconvQuote(name) + ";\n"
	hash := contentHash([]byte(entry))
	code, err := s.cache.GetOrProduce(key, hash, func() ([]byte, error) {
		result, err := transform.Bundle(entry, "dep-entry.js", s.cfg.Root, s.cfg.CacheDir+"/deps", false)
		if err != nil {
			return nil, err
		}
		return result.JS, nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write(code)
}

func strconvQuote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

// servePeaqueJS bundles the current page router's frontend entry on
// demand. Unlike /@src/<p>, this always re-bundles against the
// router's current tree rather than going through the single-file
// cache, since a router replacement must be reflected immediately.
func (s *Server) servePeaqueJS(w http.ResponseWriter, r *http.Request) {
	entry := entrygen.Frontend(s.currentPageTree(), s.cfg.PagesDir)
	result, err := transform.Bundle(entry, "peaque-entry.tsx", s.cfg.Root, s.cfg.CacheDir+"/peaque", false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write(result.JS)
}

func (s *Server) servePeaqueCSS(w http.ResponseWriter, r *http.Request) {
	entry := entrygen.Frontend(s.currentPageTree(), s.cfg.PagesDir)
	result, err := transform.Bundle(entry, "peaque-entry.tsx", s.cfg.Root, s.cfg.CacheDir+"/peaque", false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/css")
	_, _ = w.Write(result.CSS)
}

func (s *Server) serveFrameworkAsset(w http.ResponseWriter, r *http.Request, p string) {
	asset, ok := frameworkAssets[p]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/javascript")
	_, _ = w.Write([]byte(asset))
}

// serveFallback tries the public asset folder, then falls back to the
// SPA shell HTML. A page route matched here first runs its inherited
// guard.ts stack; a deny short-circuits before either the static file
// or the shell is served.
func (s *Server) serveFallback(w http.ResponseWriter, r *http.Request) {
	if s.pages != nil {
		if match, ok := s.pages.Match(r.URL.Path); ok && len(match.Stacks[routetree.RoleGuard]) > 0 {
			if s.runPageGuards(w, r, match) {
				return
			}
		}
	}

	candidate := platform.NormalizePath(path.Join(s.cfg.Root, s.cfg.PublicDir, r.URL.Path))
	publicRoot := platform.NormalizePath(path.Join(s.cfg.Root, s.cfg.PublicDir))
	if strings.HasPrefix(candidate, publicRoot+"/") || candidate == publicRoot {
		if info, err := s.fsys.Stat(candidate); err == nil && !info.IsDir() {
			data, err := s.fsys.ReadFile(candidate)
			if err == nil {
				_, _ = w.Write(data)
				return
			}
		}
	}

	w.Header().Set("Content-Type", "text/html")
	_, _ = w.Write([]byte(spaShellHTML))
}

const spaShellHTML = `<!doctype html>
<html>
<head><meta charset="utf-8"><link rel="stylesheet" href="/peaque.css"></head>
<body>
<div id="root"></div>
<script type="module" src="/peaque-loader.js"></script>
<script type="module" src="/peaque.js"></script>
</body>
</html>
`

// apiResult is the shape an API route handler's invocation returns:
// status, headers, and a body already serialized by the worker.
type apiResult struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    string            `json:"body"`
}

func writeAPIResult(w http.ResponseWriter, result apiResult) {
	for k, v := range result.Headers {
		w.Header().Set(k, v)
	}
	status := result.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte(result.Body))
}

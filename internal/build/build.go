// Package build implements the production build pipeline of spec
// §4.H: bundle the frontend and backend entries, rewrite and
// pre-compress the asset directory, render one HTML document per
// unique head stack, and emit a standalone Node backend.
package build

import (
	"crypto/sha1"
	"encoding/hex"
	"path"
	"strings"

	"peaque.dev/peaque/internal/entrygen"
	"peaque.dev/peaque/internal/headmerge"
	"peaque.dev/peaque/internal/jobs"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
	"peaque.dev/peaque/internal/transform"
)

// Config carries the project-relative directories and output location
// a build runs against.
type Config struct {
	Root      string // project root
	PagesDir  string // default "src/pages"
	APIDir    string // default "src/api"
	PublicDir string // default "src/public"
	JobsDir   string // default "src/jobs"
	OutDir    string // default "dist"
	Minify    bool
	// AssetRewrite controls step 3/4's literal-path rewriting to the
	// asset-prefixed form. Defaults to true; the CLI's --no-asset-rewrite
	// flag sets this false for projects that manage their own CDN
	// rewriting pass.
	AssetRewrite *bool
}

func (c Config) assetRewriteEnabled() bool {
	return c.AssetRewrite == nil || *c.AssetRewrite
}

func (c Config) withDefaults() Config {
	if c.PagesDir == "" {
		c.PagesDir = "src/pages"
	}
	if c.APIDir == "" {
		c.APIDir = "src/api"
	}
	if c.PublicDir == "" {
		c.PublicDir = "src/public"
	}
	if c.JobsDir == "" {
		c.JobsDir = "src/jobs"
	}
	if c.OutDir == "" {
		c.OutDir = "dist"
	}
	return c
}

// Result summarizes a completed build, mostly for the CLI's closing
// log lines and for tests.
type Result struct {
	Hash         string
	AssetDir     string
	AssetPrefix  string
	ServerShims  []string
	HeadDocument map[string]string               // stack key -> rendered HTML document path
	HeadStacks   map[string][]routetree.FileRef  // stack key -> ordered head.ts file refs, root to leaf
	PageTree     *routetree.Node                 // kept so the CLI can re-walk routes after Run returns
	BackendEntry string                          // path to the generated backend entry source
	MainFile     string                          // path to the thin main.cjs loader
}

// Run executes the full pipeline described in spec §4.H's ten steps.
func Run(fsys platform.FileSystem, cfg Config) (*Result, error) {
	cfg = cfg.withDefaults()

	pageRoot := path.Join(cfg.Root, cfg.PagesDir)
	apiRoot := path.Join(cfg.Root, cfg.APIDir)

	pageTree, err := routetree.Build(fsys, pageRoot, routetree.PageConfig)
	if err != nil {
		return nil, err
	}

	// Step 1: frontend entry module.
	frontendEntry := entrygen.Frontend(pageTree, cfg.PagesDir)
	hash := BuildHash([]byte(frontendEntry))
	assetDir := path.Join(cfg.OutDir, "assets-"+hash)
	assetPrefix := "/assets-" + hash

	if err := fsys.MkdirAll(assetDir, 0o755); err != nil {
		return nil, err
	}

	// Step 2: bundle the frontend entry; collect server shims.
	frontendResult, err := transform.Bundle(frontendEntry, "peaque-entry.tsx", cfg.Root, assetDir, cfg.Minify)
	if err != nil {
		return nil, err
	}

	// Step 3 + 4: rewrite asset references in JS and CSS, then write
	// both into the asset directory.
	publicFiles, err := listPublicFiles(fsys, path.Join(cfg.Root, cfg.PublicDir))
	if err != nil {
		return nil, err
	}

	js, css := string(frontendResult.JS), string(frontendResult.CSS)
	if cfg.assetRewriteEnabled() {
		js = rewriteAssetRefs(js, publicFiles, assetPrefix)
		css = rewriteAssetRefs(css, publicFiles, assetPrefix)
	}

	jsPath := path.Join(assetDir, "peaque.js")
	cssPath := path.Join(assetDir, "peaque.css")
	if err := fsys.WriteFile(jsPath, []byte(js), 0o644); err != nil {
		return nil, err
	}
	if err := fsys.WriteFile(cssPath, []byte(css), 0o644); err != nil {
		return nil, err
	}

	// Step 5: copy the public folder into the asset directory.
	if fsys.Exists(path.Join(cfg.Root, cfg.PublicDir)) {
		if err := fsys.CopyRecursive(path.Join(cfg.Root, cfg.PublicDir), assetDir); err != nil {
			return nil, err
		}
	}

	// Step 6: idempotent pre-compression.
	if err := CompressDir(fsys, assetDir); err != nil {
		return nil, err
	}

	// Step 7: API route tree.
	apiTree, err := routetree.Build(fsys, apiRoot, routetree.APIConfig)
	if err != nil {
		return nil, err
	}

	// Step 8: head stacks.
	headDocs, headStacks, err := renderHeadDocuments(pageTree, assetDir)
	if err != nil {
		return nil, err
	}

	// Step 9: generate the standalone backend entry.
	jobDescs, err := jobs.Discover(fsys, path.Join(cfg.Root, cfg.JobsDir))
	if err != nil {
		return nil, err
	}
	hasStartup := resolvesAny(fsys, cfg.Root, "src/startup")
	hasMiddleware := resolvesAny(fsys, cfg.Root, "src/middleware")

	backendSrc := generateBackendEntry(backendEntryInputs{
		PageTree:      pageTree,
		APITree:       apiTree,
		PagesDir:      cfg.PagesDir,
		Jobs:          jobDescs,
		HasStartup:    hasStartup,
		HasMiddleware: hasMiddleware,
		AssetPrefix:   assetPrefix,
		AssetDir:      assetDir,
		HeadDocuments: headDocs,
		ServerActions: frontendResult.ServerShims,
	})
	backendEntryPath := path.Join(cfg.OutDir, "server-entry.ts")
	if err := fsys.WriteFile(backendEntryPath, []byte(backendSrc), 0o644); err != nil {
		return nil, err
	}

	// Step 10: bundle the backend entry to commonjs, plus a thin
	// main.cjs that loads .env before requiring it.
	backendResult, err := transform.BundleNode(backendSrc, "server-entry.ts", cfg.Root, cfg.OutDir, cfg.Minify)
	if err != nil {
		return nil, err
	}
	serverPath := path.Join(cfg.OutDir, "server.cjs")
	if err := fsys.WriteFile(serverPath, backendResult.JS, 0o644); err != nil {
		return nil, err
	}
	mainPath := path.Join(cfg.OutDir, "main.cjs")
	if err := fsys.WriteFile(mainPath, []byte(mainCJS), 0o644); err != nil {
		return nil, err
	}

	return &Result{
		Hash:         hash,
		AssetDir:     assetDir,
		AssetPrefix:  assetPrefix,
		ServerShims:  frontendResult.ServerShims,
		HeadDocument: headDocs,
		HeadStacks:   headStacks,
		PageTree:     pageTree,
		BackendEntry: backendEntryPath,
		MainFile:     mainPath,
	}, nil
}

// BuildHash computes spec §4.H's asset hash: the first 8 hex
// characters of sha1(bundleEntrySource).
func BuildHash(bundleEntrySource []byte) string {
	sum := sha1.Sum(bundleEntrySource)
	return hex.EncodeToString(sum[:])[:8]
}

func resolvesAny(fsys platform.FileSystem, root, p string) bool {
	_, ok := platform.ResolveSource(fsys, root, p)
	return ok
}

func listPublicFiles(fsys platform.FileSystem, publicRoot string) (map[string]bool, error) {
	out := make(map[string]bool)
	if !fsys.Exists(publicRoot) {
		return out, nil
	}
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := fsys.ReadDir(dir)
		if err != nil {
			return err
		}
		for _, e := range entries {
			full := dir + "/" + e.Name()
			if e.IsDir() {
				if err := walk(full); err != nil {
					return err
				}
				continue
			}
			rel := strings.TrimPrefix(full, publicRoot)
			out["/"+strings.TrimPrefix(rel, "/")] = true
		}
		return nil
	}
	if err := walk(publicRoot); err != nil {
		return nil, err
	}
	return out, nil
}

func renderHeadDocuments(pageTree *routetree.Node, assetDir string) (map[string]string, map[string][]routetree.FileRef, error) {
	docs := make(map[string]string)
	stacks := make(map[string][]routetree.FileRef)
	var walkErr error
	routetree.Walk(pageTree, func(n *routetree.Node) {
		if walkErr != nil || !n.Accept {
			return
		}
		if _, isPage := n.Names[routetree.RolePage]; !isPage {
			return
		}
		stack := n.Stacks[routetree.RoleHeads]
		key := headStackKey(stack)
		if _, done := docs[key]; done {
			return
		}
		// Head contributions are TypeScript modules evaluated at build
		// time by a Node subprocess the CLI spawns; the route tree only
		// carries their file references. Rendering the actual merged
		// HTML happens through RenderHeadStack, called by the CLI build
		// command once it has resolved each head.ts module's exported
		// descriptor. Here we only reserve the stack key and the file
		// refs so every unique stack gets exactly one document path.
		docs[key] = path.Join(assetDir, "head-"+key+".html")
		stacks[key] = stack
	})
	return docs, stacks, walkErr
}

// RenderHeadStack merges an ordered list of per-node head descriptors
// (root to leaf) on top of a default descriptor and writes the
// resulting HTML fragment to docPath. The CLI build command calls this
// once per unique stack key after resolving each head.ts module's
// exported descriptor by running a bundled one-shot Node probe.
func RenderHeadStack(fsys platform.FileSystem, docPath string, descriptors []headmerge.Descriptor, assetPrefix string) error {
	merged := headmerge.Descriptor{}
	for _, d := range descriptors {
		merged = headmerge.Merge(merged, d)
	}
	html := headmerge.Render(merged, assetPrefix)
	return fsys.WriteFile(docPath, []byte(html), 0o644)
}

// headStackKey computes a stable key for a head stack: any two routes
// sharing the same ordered sequence of contributing file paths get the
// same key, so identical HTML is emitted once (spec §4.G).
func headStackKey(stack []routetree.FileRef) string {
	if len(stack) == 0 {
		return "default"
	}
	paths := make([]string, len(stack))
	for i, ref := range stack {
		paths[i] = ref.Path
	}
	sum := sha1.Sum([]byte(strings.Join(paths, "\x00")))
	return hex.EncodeToString(sum[:])[:8]
}

// mainCJS is the thin entry point `node dist/main.cjs` actually runs:
// it loads .env (.env.local is dev-only and is not read here) before
// requiring the bundled server, mirroring the load order the CLI's own
// gotenv-based config loader uses for the dev/build commands.
const mainCJS = `const fs = require('fs');
const path = require('path');

function loadEnvFile(file) {
  if (!fs.existsSync(file)) return;
  for (const line of fs.readFileSync(file, 'utf8').split('\n')) {
    const trimmed = line.trim();
    if (!trimmed || trimmed.startsWith('#')) continue;
    const eq = trimmed.indexOf('=');
    if (eq < 0) continue;
    const key = trimmed.slice(0, eq).trim();
    if (process.env[key] === undefined) {
      process.env[key] = trimmed.slice(eq + 1).trim();
    }
  }
}

loadEnvFile(path.join(__dirname, '..', '.env'));
require('./server.cjs');
`

package transform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/evanw/esbuild/pkg/api"

	"peaque.dev/peaque/internal/runtimeassets"
)

// Loader mirrors the subset of esbuild loaders this module needs.
type Loader int

const (
	LoaderTS Loader = iota
	LoaderTSX
	LoaderJS
	LoaderJSX
	LoaderCSS
)

func (l Loader) esbuild() api.Loader {
	switch l {
	case LoaderTS:
		return api.LoaderTS
	case LoaderTSX:
		return api.LoaderTSX
	case LoaderJSX:
		return api.LoaderJSX
	case LoaderCSS:
		return api.LoaderCSS
	default:
		return api.LoaderJS
	}
}

// Target mirrors esbuild's ECMAScript target enum.
type Target int

const (
	TargetESNext Target = iota
	TargetES2020
	TargetES2015
)

func (t Target) esbuild() api.Target {
	switch t {
	case TargetES2020:
		return api.ES2020
	case TargetES2015:
		return api.ES2015
	default:
		return api.ESNext
	}
}

// TransformOptions configures a single-file transform.
type TransformOptions struct {
	Loader   Loader
	Target   Target
	Minify   bool
	SourceMap bool
}

// TransformResult is the output of a transform.
type TransformResult struct {
	Code     []byte
	Map      []byte
	Warnings []string
}

// TransformTypeScript runs esbuild's single-file transform API over
// source, the collaborator contract spec §6 calls "Bundler" for
// per-module on-the-fly transforms (as distinct from the whole-project
// Build used by the production bundler).
func TransformTypeScript(source []byte, opts TransformOptions) (*TransformResult, error) {
	esOpts := api.TransformOptions{
		Loader:            opts.Loader.esbuild(),
		Target:            opts.Target.esbuild(),
		MinifyWhitespace:  opts.Minify,
		MinifyIdentifiers: opts.Minify,
		MinifySyntax:      opts.Minify,
		Format:            api.FormatESModule,
		Tsconfig:          `{"compilerOptions":{"importsNotUsedAsValues":"remove"}}`,
	}
	if opts.SourceMap {
		esOpts.Sourcemap = api.SourceMapInline
	}

	result := api.Transform(string(source), esOpts)
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("transform failed: %s", api.FormatMessages(result.Errors, api.FormatMessagesOptions{})[0])
	}

	warnings := make([]string, 0, len(result.Warnings))
	for _, w := range api.FormatMessages(result.Warnings, api.FormatMessagesOptions{}) {
		warnings = append(warnings, w)
	}

	return &TransformResult{Code: result.Code, Map: result.Map, Warnings: warnings}, nil
}

// BuildResult is the output of a whole-project bundle, the "Bundler"
// collaborator contract of spec §6.
type BuildResult struct {
	JS          []byte
	CSS         []byte
	MetafileRaw []byte
	ServerShims []string
}

const runtimeAssetNamespace = "peaque-runtime"

// peaqueResolverPlugin teaches esbuild's real bundling passes (used
// for the production frontend/backend entries and the dev server's
// on-demand /peaque.js bundle) the same two virtual prefixes the dev
// server's own /@src/ and /@deps/ request handlers understand:
// "/@src/<path>" resolves to a real file under projectRoot, and the
// three framework runtime scripts (/peaque-wire.js, /peaque-dev.js,
// /peaque-loader.js) resolve to the embedded sources in
// internal/runtimeassets rather than a file on disk. Bare specifiers
// (including "/@deps/<name>", which only ever appears inside the dev
// server's own per-dependency bundles, never inside an entry this
// plugin runs over) fall through to esbuild's default resolution.
func peaqueResolverPlugin(projectRoot string) api.Plugin {
	return api.Plugin{
		Name: "peaque-resolver",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^/@src/`}, func(a api.OnResolveArgs) (api.OnResolveResult, error) {
				rel := strings.TrimPrefix(a.Path, "/@src/")
				return api.OnResolveResult{Path: filepath.Join(projectRoot, rel), Namespace: "file"}, nil
			})
			build.OnResolve(api.OnResolveOptions{Filter: `^/peaque-(wire|dev|loader)\.js$`}, func(a api.OnResolveArgs) (api.OnResolveResult, error) {
				return api.OnResolveResult{Path: a.Path, Namespace: runtimeAssetNamespace}, nil
			})
			build.OnLoad(api.OnLoadOptions{Filter: `.*`, Namespace: runtimeAssetNamespace}, func(a api.OnLoadArgs) (api.OnLoadResult, error) {
				source, ok := runtimeassets.Assets[a.Path]
				if !ok {
					return api.OnLoadResult{}, fmt.Errorf("transform: no runtime asset for %q", a.Path)
				}
				return api.OnLoadResult{Contents: &source, Loader: api.LoaderJS}, nil
			})
		},
	}
}

// Bundle runs esbuild's project-wide Build API over in-memory entry
// contents, with outDir naming the outputs (nothing is written to
// disk), and returns the bundled JS/CSS plus the list of
// 'use server' modules esbuild's plugin hook observed while bundling.
func Bundle(entryContents string, entryName string, projectRoot string, outDir string, minify bool) (*BuildResult, error) {
	var mu sync.Mutex
	var shims []string

	shimPlugin := api.Plugin{
		Name: "peaque-use-server-collector",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.(ts|tsx|js|jsx)$`}, func(a api.OnLoadArgs) (api.OnLoadResult, error) {
				data, err := os.ReadFile(a.Path)
				if err != nil {
					return api.OnLoadResult{}, err
				}
				contents := string(data)
				if HasUseServerDirective(contents) {
					mu.Lock()
					shims = append(shims, strings.TrimPrefix(strings.TrimPrefix(a.Path, projectRoot), "/"))
					mu.Unlock()
				}
				return api.OnLoadResult{Contents: &contents, Loader: loaderForPath(a.Path)}, nil
			})
		},
	}

	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entryContents,
			Sourcefile: entryName,
			ResolveDir: projectRoot,
			Loader:     api.LoaderTSX,
		},
		Bundle:      true,
		Outdir:      outDir,
		Write:       false,
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		Metafile:    true,
		Format:      api.FormatESModule,
		Plugins:     []api.Plugin{shimPlugin, peaqueResolverPlugin(projectRoot)},
		AbsWorkingDir: projectRoot,
	})

	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{})
		return nil, fmt.Errorf("bundle failed: %s", msgs[0])
	}

	br := &BuildResult{MetafileRaw: []byte(result.Metafile), ServerShims: shims}
	for _, f := range result.OutputFiles {
		switch {
		case hasSuffix(f.Path, ".css"):
			br.CSS = f.Contents
		default:
			br.JS = f.Contents
		}
	}
	return br, nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

// loaderForPath picks the esbuild loader an OnLoad hook must declare
// explicitly once it supplies its own Contents.
func loaderForPath(p string) api.Loader {
	switch {
	case hasSuffix(p, ".tsx"):
		return api.LoaderTSX
	case hasSuffix(p, ".ts"):
		return api.LoaderTS
	case hasSuffix(p, ".jsx"):
		return api.LoaderJSX
	case hasSuffix(p, ".css"):
		return api.LoaderCSS
	default:
		return api.LoaderJS
	}
}

// BundleNode runs the same whole-project bundle as Bundle but targets
// Node's CommonJS module format, the shape spec §4.H's production
// backend entry is bundled into.
func BundleNode(entryContents string, entryName string, projectRoot string, outDir string, minify bool) (*BuildResult, error) {
	result := api.Build(api.BuildOptions{
		Stdin: &api.StdinOptions{
			Contents:   entryContents,
			Sourcefile: entryName,
			ResolveDir: projectRoot,
			Loader:     api.LoaderTS,
		},
		Bundle:            true,
		Outdir:            outDir,
		Write:             false,
		MinifyWhitespace:  minify,
		MinifyIdentifiers: minify,
		MinifySyntax:      minify,
		Format:            api.FormatCommonJS,
		Platform:          api.PlatformNode,
		Plugins:           []api.Plugin{peaqueResolverPlugin(projectRoot)},
		AbsWorkingDir:     projectRoot,
	})

	if len(result.Errors) > 0 {
		msgs := api.FormatMessages(result.Errors, api.FormatMessagesOptions{})
		return nil, fmt.Errorf("bundle failed: %s", msgs[0])
	}

	br := &BuildResult{}
	for _, f := range result.OutputFiles {
		if hasSuffix(f.Path, ".css") {
			br.CSS = f.Contents
			continue
		}
		br.JS = f.Contents
	}
	return br, nil
}

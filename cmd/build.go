package cmd

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"path"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"peaque.dev/peaque/internal/build"
	"peaque.dev/peaque/internal/codegen"
	"peaque.dev/peaque/internal/headmerge"
	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
	"peaque.dev/peaque/internal/routetree"
	"peaque.dev/peaque/internal/transform"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Produce a self-contained production bundle",
	RunE:  runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)

	buildCmd.Flags().StringP("output", "o", "", "output directory (default <base>/dist)")
	buildCmd.Flags().StringP("base", "b", "", "project base directory (default CWD)")
	buildCmd.Flags().Bool("no-minify", false, "disable bundle minification")
	buildCmd.Flags().Bool("analyze", false, "print a short build summary (head document count and build hash)")
	buildCmd.Flags().Bool("no-asset-rewrite", false, "skip rewriting public-asset references to the asset-prefixed form")
	buildCmd.Flags().Bool("serverless-frontend", false, "accepted but not read by the build; has no effect")
	buildCmd.Flags().Bool("no-react-compiler", false, "accepted but not read by the build; has no effect")

	bindFlag("build.output", buildCmd.Flags().Lookup("output"))
	bindFlag("build.base", buildCmd.Flags().Lookup("base"))
	bindFlag("build.noMinify", buildCmd.Flags().Lookup("no-minify"))
	bindFlag("build.analyze", buildCmd.Flags().Lookup("analyze"))
	bindFlag("build.noAssetRewrite", buildCmd.Flags().Lookup("no-asset-rewrite"))
	bindFlag("build.serverlessFrontend", buildCmd.Flags().Lookup("serverless-frontend"))
	bindFlag("build.noReactCompiler", buildCmd.Flags().Lookup("no-react-compiler"))
}

func runBuild(cmd *cobra.Command, args []string) error {
	base, err := resolveBase(viper.GetString("build.base"))
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}

	// Only .env is loaded for a build; .env.local is dev-only (spec §6).
	_ = gotenv.Load(path.Join(base, ".env"))

	outDir := viper.GetString("build.output")
	if outDir == "" {
		outDir = path.Join(base, "dist")
	}

	noAssetRewrite := viper.GetBool("build.noAssetRewrite")
	assetRewrite := !noAssetRewrite

	fsys := platform.NewOSFileSystem()
	cfg := build.Config{
		Root: base,
		// PagesDir is spelled out here (matching build.Config's own
		// zero-value default) rather than left blank: renderHeadDocuments
		// below needs it to reconstruct /@src/ import paths for the head
		// probe entry, and that happens against this cfg value directly
		// rather than through build.Run's internal defaulting.
		PagesDir:     "src/pages",
		OutDir:       outDir,
		Minify:       !viper.GetBool("build.noMinify"),
		AssetRewrite: &assetRewrite,
	}

	logging.Info("building %s -> %s", base, outDir)
	result, err := build.Run(fsys, cfg)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if err := renderHeadDocuments(fsys, cfg, result); err != nil {
		return fmt.Errorf("rendering head documents: %w", err)
	}

	logging.Success("build complete: %s", result.AssetDir)
	logging.Info("asset prefix: %s", result.AssetPrefix)
	logging.Info("backend entry: %s", result.BackendEntry)
	logging.Info("run with: node %s", result.MainFile)
	if len(result.ServerShims) > 0 {
		logging.Info("%d server action module(s) registered", len(result.ServerShims))
	}

	if viper.GetBool("build.analyze") {
		// §9: the --analyze output format is informational, not part of
		// the stable contract, so this is a best-effort summary rather
		// than a parsed metafile breakdown.
		logging.Info("analyze: %d route head document(s), hash %s", len(result.HeadDocument), result.Hash)
	}

	return nil
}

// renderHeadDocuments resolves every unique head-stack's ordered
// head.ts descriptors by bundling a tiny probe entry per stack and
// running it under node, then writes the merged HTML document spec
// §4.G describes. head.ts modules are synchronous (no request
// context exists at build time), so each is just required and its
// default export collected.
func renderHeadDocuments(fsys platform.FileSystem, cfg build.Config, result *build.Result) error {
	for key, stack := range result.HeadStacks {
		docPath, ok := result.HeadDocument[key]
		if !ok {
			continue
		}
		descriptors, err := resolveHeadDescriptors(cfg, stack)
		if err != nil {
			return fmt.Errorf("head stack %s: %w", key, err)
		}
		if err := build.RenderHeadStack(fsys, docPath, descriptors, result.AssetPrefix); err != nil {
			return err
		}
	}
	return nil
}

func resolveHeadDescriptors(cfg build.Config, stack []routetree.FileRef) ([]headmerge.Descriptor, error) {
	if len(stack) == 0 {
		return nil, nil
	}

	entry := headProbeEntry(cfg.PagesDir, stack)
	bundled, err := transform.BundleNode(entry, "peaque-head-probe.ts", cfg.Root, cfg.OutDir, false)
	if err != nil {
		return nil, fmt.Errorf("bundling head probe: %w", err)
	}

	probePath := path.Join(cfg.OutDir, "head-probe.cjs")
	if err := writeTempExecutable(probePath, bundled.JS); err != nil {
		return nil, err
	}

	out, err := exec.Command(nodePath(), probePath).Output()
	if err != nil {
		return nil, fmt.Errorf("running head probe: %w", err)
	}

	var descriptors []headmerge.Descriptor
	if err := json.Unmarshal(out, &descriptors); err != nil {
		return nil, fmt.Errorf("decoding head probe output: %w", err)
	}
	return descriptors, nil
}

// headProbeEntry generates the TypeScript source bundled and executed
// to recover a head stack's merged descriptor inputs: one import per
// ancestor head.ts file (root to leaf), printed as a JSON array on
// stdout.
func headProbeEntry(pagesDir string, stack []routetree.FileRef) string {
	b := codegen.New()
	idents := make([]string, len(stack))
	for i, ref := range stack {
		ident := fmt.Sprintf("head%d", i)
		idents[i] = ident
		b.Imports().Default("/@src/"+path.Join(pagesDir, ref.Path), ident)
	}
	b.Line("const descriptors = [%s];", joinIdents(idents))
	b.Line("process.stdout.write(JSON.stringify(descriptors));")
	return b.String()
}

func joinIdents(idents []string) string {
	out := ""
	for i, id := range idents {
		if i > 0 {
			out += ", "
		}
		out += id
	}
	return out
}

func writeTempExecutable(p string, data []byte) error {
	return platform.NewOSFileSystem().WriteFile(p, data, 0o644)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"peaque.dev/peaque/internal/devserver"
	"peaque.dev/peaque/internal/devworker"
	"peaque.dev/peaque/internal/jsruntime"
	"peaque.dev/peaque/internal/logging"
	"peaque.dev/peaque/internal/platform"
)

var devCmd = &cobra.Command{
	Use:   "dev",
	Short: "Start the development server with hot module replacement",
	RunE:  runDev,
}

func init() {
	rootCmd.AddCommand(devCmd)

	devCmd.Flags().IntP("port", "p", 3000, "port to listen on")
	devCmd.Flags().StringP("base", "b", "", "project base directory (default CWD)")
	devCmd.Flags().Bool("no-strict", false, "set PEAQUE_STRICT=false in the dev worker's environment (the bundled worker scripts do not read it)")
	devCmd.Flags().Bool("full-stack-traces", false, "set PEAQUE_FULL_STACK_TRACES=true in the dev worker's environment (the bundled worker scripts do not read it)")

	bindFlag("dev.port", devCmd.Flags().Lookup("port"))
	bindFlag("dev.base", devCmd.Flags().Lookup("base"))
	bindFlag("dev.noStrict", devCmd.Flags().Lookup("no-strict"))
	bindFlag("dev.fullStackTraces", devCmd.Flags().Lookup("full-stack-traces"))
}

func runDev(cmd *cobra.Command, args []string) error {
	base, err := resolveBase(viper.GetString("dev.base"))
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}

	// .env.local then .env, neither overwriting a variable already set,
	// so the process environment wins over both files and .env.local
	// wins over .env (spec §6).
	_ = gotenv.Load(path.Join(base, ".env.local"))
	_ = gotenv.Load(path.Join(base, ".env"))

	port := viper.GetInt("dev.port")
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	fsys := platform.NewOSFileSystem()
	workerDir := path.Join(base, ".peaque", "worker")
	workerPath, err := devworker.Write(fsys, workerDir)
	if err != nil {
		return fmt.Errorf("writing dev worker scripts: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := append(os.Environ(), devworker.EnvVar(addr))
	if viper.GetBool("dev.noStrict") {
		env = append(env, "PEAQUE_STRICT=false")
	}
	if viper.GetBool("dev.fullStackTraces") {
		env = append(env, "PEAQUE_FULL_STACK_TRACES=true")
	}

	runtime, err := jsruntime.Start(ctx, nodePath(), workerPath, env)
	if err != nil {
		return fmt.Errorf("starting js runtime: %w", err)
	}
	defer runtime.Close()

	server, err := devserver.New(fsys, devserver.Config{
		Root: base,
		Addr: ":" + fmt.Sprint(port),
	}, runtime)
	if err != nil {
		return fmt.Errorf("constructing dev server: %w", err)
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting dev server: %w", err)
	}

	logging.Success("peaque dev server ready at http://localhost:%d", port)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Close(shutdownCtx)
}

// nodePath resolves which node binary the js runtime worker runs
// under; PEAQUE_NODE_PATH overrides the PATH-resolved default.
func nodePath() string {
	if p := os.Getenv("PEAQUE_NODE_PATH"); p != "" {
		return p
	}
	return "node"
}

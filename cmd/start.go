package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"peaque.dev/peaque/internal/logging"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a production bundle produced by 'peaque build'",
	RunE:  runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)

	startCmd.Flags().StringP("base", "b", "", "project base directory (default CWD)")
	startCmd.Flags().IntP("port", "p", 3000, "port to listen on")

	bindFlag("start.base", startCmd.Flags().Lookup("base"))
	bindFlag("start.port", startCmd.Flags().Lookup("port"))
}

// runStart execs `node dist/main.cjs --port <port>` as a child process,
// forwarding signals and exit code exactly: main.cjs (via the generated
// backend entry, internal/build's mainCJS in build.go and
// generateBackendEntry in backend.go) owns its own
// .env loading and SIGINT/SIGTERM shutdown handling, so this command's
// only job is to be a faithful process supervisor around it.
func runStart(cmd *cobra.Command, args []string) error {
	base, err := resolveBase(viper.GetString("start.base"))
	if err != nil {
		return fmt.Errorf("resolving base directory: %w", err)
	}

	_ = gotenv.Load(path.Join(base, ".env"))

	port := viper.GetInt("start.port")
	mainFile := path.Join(base, "dist", "main.cjs")

	child := exec.Command(nodePath(), mainFile, "--port", fmt.Sprint(port))
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.Stdin = os.Stdin

	if err := child.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", mainFile, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		if child.Process != nil {
			_ = child.Process.Signal(sig)
		}
	}()

	logging.Success("peaque running at http://localhost:%d (pid %d)", port, child.Process.Pid)

	err = child.Wait()
	signal.Stop(sigCh)
	if err == nil {
		return nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		os.Exit(exitErr.ExitCode())
	}
	return fmt.Errorf("running %s: %w", mainFile, err)
}

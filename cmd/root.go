// Package cmd implements the CLI surface of spec §6: the dev, build,
// and start subcommands, cobra/viper flag-to-config wiring, and the
// gotenv-based .env/.env.local load order.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"peaque.dev/peaque/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "peaque",
	Short: "Peaque: a full-stack web application framework",
	Long: `Peaque turns a conventional src/pages + src/api project directory into a
running development server with hot module replacement, or into a
self-contained production bundle.`,
}

// Execute adds all child commands to the root command and runs it.
// Called once from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug-level logging")
	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		panic(err)
	}
}

// initConfig wires viper to read .config/peaque.yaml (if present) from
// the resolved base directory, and to let environment variables
// (PEAQUE_*) override file-based config, matching the config/env/flag
// precedence this project's tooling uses elsewhere.
func initConfig() {
	base := ""
	for _, key := range []string{"base", "dev.base", "build.base", "start.base"} {
		if v := viper.GetString(key); v != "" {
			base = v
			break
		}
	}
	if base == "" {
		base = "."
	}
	abs, err := filepath.Abs(base)
	if err == nil {
		viper.AddConfigPath(filepath.Join(abs, ".config"))
	}
	viper.SetConfigType("yaml")
	viper.SetConfigName("peaque")
	viper.SetEnvPrefix("PEAQUE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		logging.Debug("cmd: using config file %s", viper.ConfigFileUsed())
	}

	if viper.GetBool("verbose") {
		logging.SetDebugEnabled(true)
	}
}

// bindFlag binds a cobra flag to a viper key, panicking on the
// programmer error of a typo'd flag name (mirrors this project's own
// init-time viper wiring convention).
func bindFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(fmt.Sprintf("cmd: failed to bind flag %s: %v", key, err))
	}
}

// resolveBase turns the --base/-b flag (default CWD) into an absolute
// path, matching spec §6's "-b/--base <dir> (default CWD)" contract.
func resolveBase(flag string) (string, error) {
	if flag == "" {
		return os.Getwd()
	}
	return filepath.Abs(flag)
}

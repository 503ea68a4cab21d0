package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "coderun",
	Short: "Compile, run and profile programs in many languages",
	Long: `coderun - Run a program with a fixed input and report what it cost.

The program is compiled when its language needs it, then run with the input
on stdin. coderun reports stdout, stderr, exit code, wall time, peak resident
memory and source size.

Use "run" for a one-shot local run and "serve" to accept run requests over a
WebSocket.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", defaultConfigPath, "Path to config file")
}

// configFromFlags loads the config named by --config. The default path is
// optional; an explicit one must exist.
func configFromFlags(cmd *cobra.Command) (*AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	return loadAppConfig(path, cmd.Flags().Changed("config"))
}

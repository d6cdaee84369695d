package main

import (
	"fmt"
	"os"

	"github.com/Harshitk-cp/bdi/internal/buildconfig"
	"github.com/Harshitk-cp/bdi/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var rootCmd = &cobra.Command{
	Use:           "server",
	Short:         "Run BDI agents and their HTTP control surface",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.Load()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", buildconfig.Version(), buildconfig.Commit())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, runCmd, versionCmd)
	runCmd.Flags().IntVarP(&runCycles, "cycles", "n", 10, "Number of reasoning cycles to run")
	runCmd.Flags().StringVarP(&runProgram, "program", "p", "", "Program file (defaults to PROGRAM_PATH)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "Print plan statistics as JSON")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(config.LogLevel())
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

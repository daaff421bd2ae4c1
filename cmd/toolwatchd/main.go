package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "toolwatchd",
	Short:        "Continuous health monitoring daemon for operational tooling",
	Long:         "toolwatchd probes registered services and tool integrations, isolates failing targets behind circuit breakers, aggregates response metrics, and flags cascade failures across the dependency graph.",
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("toolwatchd version %s\n", version))

	rootCmd.AddCommand(newServeCmd())
}

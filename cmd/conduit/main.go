// Package main is the entry point for the conduit binary.
// It provides a CLI for running pipelines once, validating configuration,
// and serving the pipeline engine over HTTP.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// newRootCmd creates the root command for conduit
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "conduit",
		Short: "Pipeline orchestration engine for AI task providers",
		Long: `Conduit routes AI task requests (translate, moderate, summarize, detect)
to configured providers and executes multi-step pipelines with retry,
circuit breaking and ordered fallback.

Example:
  conduit run --config conduit.yaml --pipeline moderated-translate --input '{"text":"hello"}'
  conduit serve --config conduit.yaml`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "conduit.yaml", "Path to configuration file (YAML)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newServeCmd())

	return rootCmd
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduitai/conduit-oss/pkg/config"
)

// newValidateCmd creates the command that checks configuration and
// pipeline files without starting anything.
func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and pipeline definitions",
		RunE:  runValidate,
	}
}

func runValidate(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if _, err := cfg.BuildRegistry(nil); err != nil {
		return fmt.Errorf("providers: %w", err)
	}

	defs, err := cfg.LoadPipelines()
	if err != nil {
		return fmt.Errorf("pipelines: %w", err)
	}

	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "config OK: %d provider(s), %d pipeline(s)\n", len(cfg.Providers), len(defs))
	if len(names) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "pipelines: %s\n", strings.Join(names, ", "))
	}
	return nil
}

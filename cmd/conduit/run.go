package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduitai/conduit-oss/pkg/engine"
)

// newRunCmd creates the command that executes a single pipeline run.
func newRunCmd() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute one pipeline and print the result as JSON",
		RunE:  runOnce,
	}

	runCmd.Flags().StringP("pipeline", "p", "", "Name of the pipeline to run")
	runCmd.Flags().StringP("input", "i", "", "Initial payload as JSON (a bare string is used verbatim)")
	runCmd.Flags().String("input-file", "", "Read the initial payload from a JSON file")
	runCmd.Flags().Bool("continue-on-error", false, "Record step failures and keep going")
	runCmd.Flags().Duration("deadline", 0, "Overall run deadline (e.g. 30s)")
	runCmd.Flags().Bool("debug", false, "Verbose per-step logging")
	_ = runCmd.MarkFlagRequired("pipeline")

	return runCmd
}

// parseInput decodes the --input / --input-file payload. Invalid JSON in
// --input is treated as a plain string so quick invocations like
// --input hello work without quoting gymnastics.
func parseInput(cmd *cobra.Command) (any, error) {
	inputFile, _ := cmd.Flags().GetString("input-file")
	raw, _ := cmd.Flags().GetString("input")

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("read input file: %w", err)
		}
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse input file: %w", err)
		}
		return v, nil
	}

	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw, nil
	}
	return v, nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	pipeline, _ := cmd.Flags().GetString("pipeline")
	continueOnError, _ := cmd.Flags().GetBool("continue-on-error")
	deadline, _ := cmd.Flags().GetDuration("deadline")
	debug, _ := cmd.Flags().GetBool("debug")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.shutdown(shutdownCtx); err != nil {
			a.logger.Error("Telemetry shutdown error", "error", err)
		}
	}()

	input, err := parseInput(cmd)
	if err != nil {
		return err
	}

	result, err := a.engine.RunByName(ctx, pipeline, input, engine.RunOptions{
		Debug:           debug,
		ContinueOnError: continueOnError,
		Deadline:        deadline,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if !result.Success {
		return fmt.Errorf("pipeline %q failed", pipeline)
	}
	return nil
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/conduitai/conduit-oss/pkg/config"
	"github.com/conduitai/conduit-oss/pkg/domain"
	"github.com/conduitai/conduit-oss/pkg/engine"
	"github.com/conduitai/conduit-oss/pkg/provider"
)

// newServeCmd creates the command that serves the engine over HTTP.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the pipeline engine over HTTP",
		Long: `Starts two listeners: the API server (server.address) accepting run
requests, and the metrics server (metrics.address) exposing Prometheus
metrics. Pipeline files in the configured directory are hot reloaded.`,
		RunE: runServe,
	}
}

// runRequest is the POST /v1/runs payload.
type runRequest struct {
	Pipeline        string `json:"pipeline"`
	Input           any    `json:"input"`
	ContinueOnError bool   `json:"continue_on_error"`
	DeadlineMS      int    `json:"deadline_ms"`
	Debug           bool   `json:"debug"`
}

func runServe(cmd *cobra.Command, _ []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}

	// Hot reload pipeline definitions on file changes.
	var watcher *config.PipelineWatcher
	if a.cfg.Pipelines.Dir != "" {
		watcher, err = config.NewPipelineWatcher(a.cfg.Pipelines.Dir, func(string) error {
			defs, err := a.cfg.LoadPipelines()
			if err != nil {
				return err
			}
			a.engine.Registry().Replace(defs)
			a.logger.Info("Pipelines reloaded", "count", len(defs))
			return nil
		}, a.logger)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
	}

	apiServer := &http.Server{
		Addr:              a.cfg.Server.Address,
		Handler:           otelhttp.NewHandler(newAPIHandler(a), "conduit.api"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	metricsServer := &http.Server{
		Addr:              a.cfg.Metrics.Address,
		Handler:           newMetricsHandler(a),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("API server listening", "addr", apiServer.Addr)
		errCh <- apiServer.ListenAndServe()
	}()
	go func() {
		a.logger.Info("Metrics server listening", "addr", metricsServer.Addr)
		errCh <- metricsServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Server error", "error", err)
			return err
		}
	case <-ctx.Done():
		a.logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if watcher != nil {
		if err := watcher.Stop(); err != nil {
			a.logger.Error("Watcher stop error", "error", err)
		}
	}
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("API shutdown error", "error", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Metrics shutdown error", "error", err)
	}
	if err := a.shutdown(shutdownCtx); err != nil {
		a.logger.Error("Telemetry shutdown error", "error", err)
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func newAPIHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/runs", handleRun(a.engine, a.logger))
	mux.HandleFunc("GET /v1/pipelines", handleListPipelines(a.engine))
	mux.HandleFunc("GET /v1/providers", handleListProviders(a.providers))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func newMetricsHandler(a *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", a.prom.Handler())
	return mux
}

func handleRun(eng *engine.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req runRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
		if req.Pipeline == "" {
			writeError(w, http.StatusBadRequest, "pipeline is required")
			return
		}

		result, err := eng.RunByName(r.Context(), req.Pipeline, req.Input, engine.RunOptions{
			Debug:           req.Debug,
			ContinueOnError: req.ContinueOnError,
			Deadline:        time.Duration(req.DeadlineMS) * time.Millisecond,
		})
		if err != nil {
			if errors.Is(err, domain.ErrPipelineNotFound) {
				writeError(w, http.StatusNotFound, err.Error())
				return
			}
			logger.Error("Run request failed", "pipeline", req.Pipeline, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		// A failed run is still a completed request. The Result carries
		// success=false and the failure trace.
		writeJSON(w, http.StatusOK, result)
	}
}

func handleListPipelines(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"pipelines": eng.Registry().Names()})
	}
}

func handleListProviders(reg *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"providers": reg.Descriptors()})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

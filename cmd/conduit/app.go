package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/conduitai/conduit-oss/internal/resilience"
	"github.com/conduitai/conduit-oss/pkg/config"
	"github.com/conduitai/conduit-oss/pkg/domain"
	"github.com/conduitai/conduit-oss/pkg/engine"
	"github.com/conduitai/conduit-oss/pkg/logging"
	"github.com/conduitai/conduit-oss/pkg/provider"
	"github.com/conduitai/conduit-oss/pkg/telemetry"
)

// app bundles the wired components shared by the run and serve commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	engine    *engine.Engine
	providers *provider.Registry
	prom      *telemetry.PromEmitter

	// shutdown flushes telemetry. Callers must invoke it on termination.
	shutdown func(context.Context) error
}

// buildApp loads configuration and wires the provider registry, resilience
// layer and engine. Pipelines found in the configured dir and files are
// loaded into the engine's definition registry.
func buildApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	slog.SetDefault(logger)

	shutdown, err := telemetry.SetupProvider(ctx, telemetry.Config{
		ServiceName: "conduit",
		Endpoint:    cfg.Telemetry.OTLPEndpoint,
		Insecure:    cfg.Telemetry.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}

	registry, err := cfg.BuildRegistry(nil)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}
	registry.Seal()

	prom := telemetry.NewPromEmitter()
	emitter := domain.MultiEmitter(prom, telemetry.NewOTelEmitter())

	caller := resilience.NewCaller(resilience.Config{
		Registry: registry,
		Policy:   cfg.Resilience.Policy(),
		Emitter:  emitter,
		Logger:   logger,
	})

	eng := engine.New(engine.Config{
		Providers: registry,
		Caller:    caller,
		Defaults:  cfg.Routing.Defaults,
		Limits:    cfg.Engine.Limits(),
		Emitter:   emitter,
		Logger:    logger,
	})

	defs, err := cfg.LoadPipelines()
	if err != nil {
		return nil, fmt.Errorf("load pipelines: %w", err)
	}
	eng.Registry().Replace(defs)

	return &app{
		cfg:       cfg,
		logger:    logger,
		engine:    eng,
		providers: registry,
		prom:      prom,
		shutdown:  shutdown,
	}, nil
}

// Package config loads the service configuration and pipeline definition
// files, and keeps the pipeline registry fresh through a file watcher.
package config

import (
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/conduitai/conduit-oss/internal/resilience"
	"github.com/conduitai/conduit-oss/pkg/engine"
	"github.com/conduitai/conduit-oss/pkg/provider"
)

// Config holds the global configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Server     ServerConfig     `yaml:"server"`
	Providers  []ProviderConfig `yaml:"providers"`
	Routing    RoutingConfig    `yaml:"routing"`
	Resilience ResilienceConfig `yaml:"resilience"`
	Engine     EngineConfig     `yaml:"engine"`
	Pipelines  PipelinesConfig  `yaml:"pipelines"`
}

// LoggingConfig holds configuration for logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig holds configuration for OpenTelemetry.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

// MetricsConfig holds configuration for the Prometheus endpoint.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// ServerConfig holds configuration for the run API server.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// ProviderConfig declares one backend provider instance.
type ProviderConfig struct {
	Name         string         `yaml:"name"`
	Kind         string         `yaml:"kind"`
	BaseURL      string         `yaml:"base_url"`
	APIKeyEnv    string         `yaml:"api_key_env"`
	Model        string         `yaml:"model"`
	Capabilities []string       `yaml:"capabilities"`
	Responses    map[string]any `yaml:"responses"`
}

// RoutingConfig maps task types to default provider precedence lists.
type RoutingConfig struct {
	Defaults map[string][]string `yaml:"defaults"`
}

// ResilienceConfig holds retry and circuit breaker parameters.
type ResilienceConfig struct {
	MaxAttempts      int     `yaml:"max_attempts"`
	BaseDelayMS      int     `yaml:"base_delay_ms"`
	MaxDelayMS       int     `yaml:"max_delay_ms"`
	BackoffFactor    float64 `yaml:"backoff_factor"`
	Jitter           bool    `yaml:"jitter"`
	FailureThreshold int     `yaml:"failure_threshold"`
	OpenTimeoutMS    int     `yaml:"open_timeout_ms"`
}

// Policy converts the config into a resilience policy.
func (c ResilienceConfig) Policy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts:       c.MaxAttempts,
		InitialBackoff:    time.Duration(c.BaseDelayMS) * time.Millisecond,
		MaxBackoff:        time.Duration(c.MaxDelayMS) * time.Millisecond,
		BackoffMultiplier: c.BackoffFactor,
		Jitter:            c.Jitter,
		FailureThreshold:  c.FailureThreshold,
		OpenTimeout:       time.Duration(c.OpenTimeoutMS) * time.Millisecond,
	}
}

// EngineConfig bounds the engine's concurrency and loops.
type EngineConfig struct {
	MaxConcurrency    int `yaml:"max_concurrency"`
	MaxLoopIterations int `yaml:"max_loop_iterations"`
}

// Limits converts the config into engine limits.
func (c EngineConfig) Limits() engine.Limits {
	return engine.Limits{
		MaxConcurrency:    c.MaxConcurrency,
		MaxLoopIterations: c.MaxLoopIterations,
	}
}

// PipelinesConfig locates pipeline definition files.
type PipelinesConfig struct {
	Dir   string   `yaml:"dir"`
	Files []string `yaml:"files"`
}

// Load reads configuration from a file and applies environment variable
// overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{Address: ":9091"},
		Server:  ServerConfig{Address: ":8080"},
		Resilience: ResilienceConfig{
			MaxAttempts:      3,
			BaseDelayMS:      100,
			MaxDelayMS:       5000,
			BackoffFactor:    2.0,
			Jitter:           true,
			FailureThreshold: 5,
			OpenTimeoutMS:    30000,
		},
		Engine: EngineConfig{MaxConcurrency: 4, MaxLoopIterations: 100},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if val := os.Getenv("CONDUIT_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CONDUIT_OTLP_ENDPOINT"); val != "" {
		cfg.Telemetry.OTLPEndpoint = val
	}
	if val := os.Getenv("CONDUIT_OTLP_INSECURE"); val == "true" {
		cfg.Telemetry.Insecure = true
	}
	if val := os.Getenv("CONDUIT_METRICS_ADDR"); val != "" {
		cfg.Metrics.Address = val
	}
	if val := os.Getenv("CONDUIT_SERVER_ADDR"); val != "" {
		cfg.Server.Address = val
	}
	if val := os.Getenv("CONDUIT_PIPELINE_DIR"); val != "" {
		cfg.Pipelines.Dir = val
	}
	if val := os.Getenv("CONDUIT_MAX_CONCURRENCY"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			cfg.Engine.MaxConcurrency = n
		}
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true
		switch p.Kind {
		case "openai", "anthropic":
		case "static":
			if len(p.Responses) == 0 {
				return fmt.Errorf("provider %q: static provider needs responses", p.Name)
			}
		default:
			return fmt.Errorf("provider %q: unknown kind %q", p.Name, p.Kind)
		}
	}
	for task, names := range c.Routing.Defaults {
		for _, name := range names {
			if !seen[name] {
				return fmt.Errorf("routing default for %q references unknown provider %q", task, name)
			}
		}
	}
	if c.Resilience.MaxAttempts < 0 {
		return fmt.Errorf("resilience.max_attempts must not be negative")
	}
	if c.Resilience.BackoffFactor < 0 {
		return fmt.Errorf("resilience.backoff_factor must not be negative")
	}
	if c.Engine.MaxConcurrency < 0 {
		return fmt.Errorf("engine.max_concurrency must not be negative")
	}
	return nil
}

// BuildRegistry constructs and registers the configured providers. The
// returned registry is not yet sealed; the caller seals it once startup
// registration is complete.
func (c *Config) BuildRegistry(httpClient *http.Client) (*provider.Registry, error) {
	reg := provider.NewRegistry()
	for _, pc := range c.Providers {
		var p provider.Provider
		switch pc.Kind {
		case "openai":
			p = provider.NewOpenAI(provider.OpenAIConfig{
				Name:         pc.Name,
				BaseURL:      pc.BaseURL,
				APIKey:       os.Getenv(pc.APIKeyEnv),
				Model:        pc.Model,
				Capabilities: pc.Capabilities,
				HTTPClient:   httpClient,
			})
		case "anthropic":
			p = provider.NewAnthropic(provider.AnthropicConfig{
				Name:         pc.Name,
				BaseURL:      pc.BaseURL,
				APIKey:       os.Getenv(pc.APIKeyEnv),
				Model:        pc.Model,
				Capabilities: pc.Capabilities,
				HTTPClient:   httpClient,
			})
		case "static":
			p = provider.NewStatic(pc.Name, pc.Responses)
		default:
			return nil, fmt.Errorf("provider %q: unknown kind %q", pc.Name, pc.Kind)
		}
		if err := reg.Register(p); err != nil {
			return nil, fmt.Errorf("register provider %q: %w", pc.Name, err)
		}
	}
	return reg, nil
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":9091", cfg.Metrics.Address)
	assert.Equal(t, 3, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrency)

	policy := cfg.Resilience.Policy()
	assert.Equal(t, 100*time.Millisecond, policy.InitialBackoff)
	assert.Equal(t, 5*time.Second, policy.MaxBackoff)
	assert.Equal(t, 30*time.Second, policy.OpenTimeout)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "conduit.yaml", `
logging:
  level: debug
providers:
  - name: primary
    kind: openai
    model: gpt-4o-mini
    api_key_env: TEST_OPENAI_KEY
    capabilities: [translate, summarize]
  - name: offline
    kind: static
    responses:
      translate:
        translated: hola
routing:
  defaults:
    translate: [primary, offline]
resilience:
  max_attempts: 5
engine:
  max_concurrency: 8
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Providers, 2)
	assert.Equal(t, "openai", cfg.Providers[0].Kind)
	assert.Equal(t, []string{"primary", "offline"}, cfg.Routing.Defaults["translate"])
	assert.Equal(t, 5, cfg.Resilience.MaxAttempts)
	assert.Equal(t, 8, cfg.Engine.MaxConcurrency)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONDUIT_LOG_LEVEL", "warn")
	t.Setenv("CONDUIT_METRICS_ADDR", ":9999")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, ":9999", cfg.Metrics.Address)
}

func TestValidateRejectsBadConfig(t *testing.T) {
	dir := t.TempDir()

	dup := writeFile(t, dir, "dup.yaml", `
providers:
  - name: a
    kind: static
    responses: {translate: {translated: x}}
  - name: a
    kind: static
    responses: {translate: {translated: y}}
`)
	_, err := Load(dup)
	assert.ErrorContains(t, err, "duplicate provider")

	badKind := writeFile(t, dir, "kind.yaml", `
providers:
  - name: a
    kind: telepathy
`)
	_, err = Load(badKind)
	assert.ErrorContains(t, err, "unknown kind")

	badRouting := writeFile(t, dir, "routing.yaml", `
routing:
  defaults:
    translate: [ghost]
`)
	_, err = Load(badRouting)
	assert.ErrorContains(t, err, "unknown provider")
}

func TestBuildRegistry(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")
	cfg := &Config{Providers: []ProviderConfig{
		{Name: "primary", Kind: "openai", APIKeyEnv: "TEST_OPENAI_KEY", Capabilities: []string{"translate"}},
		{Name: "claude", Kind: "anthropic", Capabilities: []string{"summarize"}},
		{Name: "offline", Kind: "static", Responses: map[string]any{"translate": map[string]any{"translated": "x"}}},
	}}
	reg, err := cfg.BuildRegistry(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"primary", "claude", "offline"}, reg.List())
	assert.Equal(t, []string{"primary", "offline"}, reg.CapableOf("translate"))
	assert.False(t, reg.Sealed())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdhe/resume-ai-gateway/pkg/provider"
)

var envKeys = []string{
	"GRPC_PORT", "METRICS_PORT", "PROVIDERS_FILE", "MAX_RETRIES", "RETRY_BASE_DELAY",
	"ATTEMPT_TIMEOUT", "REQUEST_TIMEOUT", "CB_FAILURE_THRESHOLD", "CB_COOLDOWN",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "CACHE_TTL", "LOG_LEVEL",
}

// clearEnv unsets every config variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "50051", cfg.GRPCPort)
	assert.Equal(t, "9090", cfg.MetricsPort)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.Breaker().Enabled())

	rc := cfg.Retry()
	assert.Equal(t, 2, rc.MaxRetries)
	assert.Equal(t, time.Second, rc.BaseDelay)
	assert.Equal(t, 30*time.Second, rc.AttemptTimeout)
}

func TestLoad_Env(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRPC_PORT", "6000")
	t.Setenv("MAX_RETRIES", "4")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("CB_FAILURE_THRESHOLD", "3")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("CACHE_TTL", "10m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "6000", cfg.GRPCPort)
	assert.Equal(t, 4, cfg.Retry().MaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry().BaseDelay)
	assert.True(t, cfg.Breaker().Enabled())
	assert.Equal(t, 3, cfg.Breaker().FailureThreshold)
	assert.True(t, cfg.CacheEnabled())
	assert.Equal(t, 2, cfg.Cache().DB)
	assert.Equal(t, 10*time.Minute, cfg.Cache().TTL)
	assert.Equal(t, "debug", cfg.Logging().Level)
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRPC_PORT", "6000")

	cfg, err := Load([]string{"--grpc-port=7000", "--max-retries=3"})
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.GRPCPort)
	assert.Equal(t, 3, cfg.Retry().MaxRetries)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)

	t.Setenv("LOG_LEVEL", "verbose")
	_, err := Load(nil)
	assert.Error(t, err)

	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("MAX_RETRIES", "many")
	_, err = Load(nil)
	assert.Error(t, err)
}

func TestRetry_ZeroValuesTakeDefaults(t *testing.T) {
	cfg := &Config{MaxRetries: 0, RetryBaseDelay: time.Second, AttemptTimeout: 0}
	rc := cfg.Retry()
	assert.Equal(t, 2, rc.MaxRetries)
	assert.Equal(t, time.Second, rc.BaseDelay)
	assert.Equal(t, 30*time.Second, rc.AttemptTimeout)
}

func TestRetry_ExplicitZeroDelayKept(t *testing.T) {
	clearEnv(t)
	t.Setenv("RETRY_BASE_DELAY", "0s")

	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Retry().BaseDelay)

	cfg, err = Load([]string{"--retry-base-delay=0s"})
	require.NoError(t, err)
	assert.Zero(t, cfg.Retry().BaseDelay)
}

func TestCatalog(t *testing.T) {
	cfg := &Config{}
	catalog, err := cfg.Catalog()
	require.NoError(t, err)
	assert.Equal(t, 3, catalog.Len())
	assert.Equal(t, "openrouter", catalog.Providers()[0].Name)

	path := filepath.Join(t.TempDir(), "providers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
providers:
  - name: local
    family: chat-completions
    endpoint: http://localhost:8080/v1/chat/completions
    credential_key: LOCAL_KEY
    model: llama3
    priority: 1
`), 0o600))

	cfg.ProvidersFile = path
	catalog, err = cfg.Catalog()
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Len())
	assert.Equal(t, provider.FamilyChatCompletions, catalog.Providers()[0].Adapter.Family())

	cfg.ProvidersFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = cfg.Catalog()
	assert.Error(t, err)
}

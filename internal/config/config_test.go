package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, time.Hour, cfg.Memory.TTL)
	assert.Equal(t, 5*time.Minute, cfg.Eval.IdleTimeout)
	assert.InDelta(t, 0.81, cfg.Eval.Baseline, 1e-9)
	assert.Equal(t, "Ashley", cfg.Providers.InworldVoice)
	assert.Equal(t, "inworld-tts-1", cfg.Providers.InworldModel)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("EVAL_IDLE_TIMEOUT", "90s")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "x-api-key=abc,tenant=sophia")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "cache.local:6380", cfg.RedisAddr())
	assert.Equal(t, 90*time.Second, cfg.Eval.IdleTimeout)
	assert.Equal(t, map[string]string{"x-api-key": "abc", "tenant": "sophia"}, cfg.Telemetry.Headers)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GENERATION_MODEL=test-model\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GENERATION_MODEL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "test-model", cfg.Providers.GenerationModel)
}

func TestLoadMissingDotEnv(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.NoError(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	cfg.Eval.Threshold = 1.5
	err = cfg.Validate()

	var cerr *ConfigError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, "Eval.Threshold", cerr.Field)
}

func TestRedisAddrEmpty(t *testing.T) {
	cfg := &Config{}
	assert.Empty(t, cfg.RedisAddr())
}

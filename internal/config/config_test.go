package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/shelfsense/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shelfsense.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	v, err := New(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 24*time.Hour, cfg.Cache.TTL)
	assert.Equal(t, "shelfsense:", cfg.Cache.Redis.Prefix)
	assert.Equal(t, 15*time.Second, cfg.AI.AttemptTimeout)
	assert.Equal(t, 800, cfg.AI.MaxImageWidth)
	assert.Equal(t, 80, cfg.AI.JPEGQuality)
	assert.Equal(t, DefaultGeminiModels, cfg.Providers.GeminiModels)
	assert.Equal(t, DefaultGroqModels, cfg.Providers.GroqModels)
	assert.Equal(t, 5, cfg.Scan.ConfirmFrames)
	assert.Equal(t, models.IntentGeneral, cfg.Intent)
	assert.Equal(t, "evals", cfg.Eval.OutputDir)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "google-key")
	t.Setenv("GROQ_API_KEY", "groq-key")
	t.Setenv("SHELFSENSE_AI_ATTEMPT_TIMEOUT", "3s")
	t.Setenv("SHELFSENSE_SERVER_PORT", "9090")

	path := writeConfig(t, `
cache:
  backend: redis
redis:
  addr: cache:6379
intent:
  default: no nuts
providers:
  groq:
    models: [llama-3.1-8b-instant]
`)
	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.AI.AttemptTimeout)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, "cache:6379", cfg.Cache.Redis.Addr)
	assert.Equal(t, models.IntentNutAllergy, cfg.Intent)
	assert.Equal(t, "google-key", cfg.Providers.GeminiKey)
	assert.Equal(t, "groq-key", cfg.Providers.GroqKey)
	assert.Equal(t, []string{"llama-3.1-8b-instant"}, cfg.Providers.GroqModels)
	assert.Empty(t, cfg.Providers.OpenRouterKey)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown intent", "intent:\n  default: paleo\n"},
		{"bad port", "server:\n  port: 70000\n"},
		{"zero frames", "scan:\n  confirm_frames: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := New(writeConfig(t, tt.body))
			require.NoError(t, err)
			_, err = Load(v)
			assert.Error(t, err)
		})
	}
}

func TestNewMissingExplicitFile(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/infrastructure/config"
)

var keys = []string{
	"SERVER_ADDRESS", "SHUTDOWN_TIMEOUT", "DATABASE_PATH", "LOG_FILE_PATH", "APP_ENV",
	"OLLAMA_URL", "LLM_TIMEOUT", "RETRY_DELAY", "BUDGETS_FILE", "CONNECTION_TTL",
}

func clearEnv(t *testing.T) {
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ServerAddress)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "coach.db", cfg.DatabasePath)
	assert.Equal(t, "coach.log", cfg.LogFilePath)
	assert.False(t, cfg.Production)
	assert.Equal(t, "http://localhost:11434", cfg.OllamaURL)
	assert.Zero(t, cfg.LLMTimeout)
	assert.Equal(t, 300*time.Millisecond, cfg.RetryDelay)
	assert.Empty(t, cfg.BudgetsFile)
	assert.Equal(t, 2*time.Hour, cfg.ConnectionTTL)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDRESS", ":9000")
	t.Setenv("APP_ENV", "Production")
	t.Setenv("LLM_TIMEOUT", "90s")
	t.Setenv("BUDGETS_FILE", "budgets.yaml")

	cfg, err := config.FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.ServerAddress)
	assert.True(t, cfg.Production)
	assert.Equal(t, 90*time.Second, cfg.LLMTimeout)
	assert.Equal(t, "budgets.yaml", cfg.BudgetsFile)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := map[string]string{
		"RETRY_DELAY":    "soon",
		"CONNECTION_TTL": "-1h",
		"APP_ENV":        "staging",
	}
	for k, v := range tests {
		t.Run(k, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(k, v)
			_, err := config.FromEnv()
			assert.ErrorContains(t, err, k)
		})
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{
		"SERVER_PORT", "STORAGE_BACKEND", "CYCLE_INTERVAL", "AGENT_WORKERS",
		"FUZZY_THRESHOLD", "RATE_LIMIT_RPS", "LOG_LEVEL", "AGENT_COUNT",
	} {
		t.Setenv(k, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, StorageMemory, StorageBackend())
	assert.Equal(t, 100*time.Millisecond, CycleInterval())
	assert.Equal(t, 4, AgentWorkers())
	assert.Equal(t, 1, AgentCount())
	assert.Zero(t, FuzzyThreshold())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, "info", LogLevel())
}

func TestInvalidValuesFallBack(t *testing.T) {
	tests := []struct {
		key  string
		val  string
		get  func() any
		want any
	}{
		{key: "SERVER_PORT", val: "http", get: func() any { return ServerPort() }, want: 8080},
		{key: "STORAGE_BACKEND", val: "redis", get: func() any { return StorageBackend() }, want: StorageMemory},
		{key: "CYCLE_INTERVAL", val: "-1s", get: func() any { return CycleInterval() }, want: 100 * time.Millisecond},
		{key: "FUZZY_THRESHOLD", val: "1.5", get: func() any { return FuzzyThreshold() }, want: 0.0},
		{key: "TRIGGER_WORKERS", val: "0", get: func() any { return TriggerWorkers() }, want: 8},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			assert.Equal(t, tt.want, tt.get())
		})
	}
}

func TestLoad_EnvAndSecret(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(env, []byte("STORAGE_BACKEND=badger\nCYCLE_INTERVAL=250ms\n"), 0o600))
	require.NoError(t, os.WriteFile(env+".secret", []byte("API_TOKEN=hunter2\n"), 0o600))

	t.Setenv("BDI_ENV", env)
	// godotenv keeps variables that are already set.
	for _, k := range []string{"STORAGE_BACKEND", "CYCLE_INTERVAL", "API_TOKEN"} {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}

	require.NoError(t, Load())
	assert.Equal(t, StorageBadger, StorageBackend())
	assert.Equal(t, 250*time.Millisecond, CycleInterval())
	assert.Equal(t, "hunter2", APIToken())
}

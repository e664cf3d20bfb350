package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"PORT", "CORS_ORIGINS", "STORE", "DB_PATH", "LOG_LEVEL"} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(nil)

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "payout.db", cfg.DBPath)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSOrigins)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_EnvThenFlags(t *testing.T) {
	// GIVEN: environment overrides
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("STORE", "memory")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

	// WHEN: a flag overrides the port again
	cfg, err := Load([]string{"-port", "9100", "-log-level", "debug"})

	// THEN
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_BadFlag(t *testing.T) {
	clearEnv(t)
	_, err := Load([]string{"-nope"})
	assert.Error(t, err)
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := &Config{Port: 0, Store: "postgres", LogLevel: "loud"}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port 0")
	assert.Contains(t, err.Error(), "invalid store 'postgres'")
	assert.Contains(t, err.Error(), "invalid log level 'loud'")
}

func TestValidate_SQLiteNeedsPath(t *testing.T) {
	cfg := &Config{Port: 8080, Store: StoreSQLite, LogLevel: "info"}
	assert.ErrorContains(t, cfg.Validate(), "SQLite database path")

	cfg.Store = StoreMemory
	assert.NoError(t, cfg.Validate())
}

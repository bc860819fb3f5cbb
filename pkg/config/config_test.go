package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseq/internal/core/numerator"
)

// inTempDir runs the test from an empty directory so no config.env is found.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.App.Env)
	assert.True(t, cfg.App.IsDevelopment())
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 30*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, numerator.StrategyReconcile, cfg.Numbering.Strategy)
	assert.Equal(t, 5, cfg.Numbering.MaxAttempts)
	assert.Equal(t, 10*1024, cfg.Audit.CompressThreshold)
	assert.True(t, cfg.Migrations.Enabled)
	assert.Equal(t, "postgres://postgres:@localhost:5432/docseq?sslmode=disable", cfg.DB.ConnectionString())
}

func TestLoad_EnvOverrides(t *testing.T) {
	inTempDir(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/docs")
	t.Setenv("NUMBERING_STRATEGY", "Counter")
	t.Setenv("NUMBERING_MAX_ATTEMPTS", "8")
	t.Setenv("NUMBERING_BACKOFF", "10ms")
	t.Setenv("AUDIT_COMPRESS_THRESHOLD", "2048")
	t.Setenv("MIGRATIONS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.App.IsDevelopment())
	assert.Equal(t, "0.0.0.0:9090", cfg.HTTP.Addr())
	assert.Equal(t, "postgres://u:p@db:5432/docs", cfg.DB.ConnectionString())

	opts := cfg.Numbering.Options()
	assert.Equal(t, numerator.StrategyCounter, opts.Strategy)
	assert.Equal(t, 8, opts.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, opts.Backoff)
	assert.Equal(t, 2048, cfg.Audit.CompressThreshold)
	assert.False(t, cfg.Migrations.Enabled)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.env"),
		[]byte("LOG_LEVEL=debug\nDB_NAME=ledger\n"), 0o600))
	t.Setenv("DB_NAME", "from_env")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "from_env", cfg.DB.Name)
}

func TestLoad_Rejects(t *testing.T) {
	tests := map[string][2]string{
		"strategy": {"NUMBERING_STRATEGY", "random"},
		"attempts": {"NUMBERING_MAX_ATTEMPTS", "0"},
		"port":     {"HTTP_PORT", "70000"},
	}

	for name, kv := range tests {
		t.Run(name, func(t *testing.T) {
			inTempDir(t)
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

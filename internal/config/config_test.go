package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	cfg := Load()

	assert.Equal(t, "3000", cfg.HTTPPort)
	assert.Equal(t, "absensi:events", cfg.BroadcastChannel)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.PhotoTimeout)
	assert.Equal(t, "0 17 * * 1-5", cfg.AbsenceCron)
	assert.False(t, cfg.Production())
}

func TestLoadFromEnvAndFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_DRIVER=sqlite3\nRATE_LIMIT_PER_MIN=30\n"), 0o600))
	t.Setenv("ENV_FILE", envFile)
	// godotenv never overrides variables that are already set
	t.Setenv("RATE_LIMIT_PER_MIN", "90")
	t.Setenv("DB_DRIVER", "unset")
	require.NoError(t, os.Unsetenv("DB_DRIVER"))
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_TTL", "not-a-duration")
	t.Setenv("DEBUG", "true")

	cfg := Load()
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 90, cfg.RateLimitPerMin)
	assert.True(t, cfg.Production())
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.Debug)
}

func TestLocation(t *testing.T) {
	assert.Equal(t, time.UTC.String(), App{Timezone: "UTC"}.Location().String())
	assert.Equal(t, time.Local, App{Timezone: "Nowhere/Special"}.Location())
}

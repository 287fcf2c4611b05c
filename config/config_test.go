package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromYAML_MissingFileUsesDefaults(t *testing.T) {
	cfg := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml"))

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Realtime.Registry)
	assert.Equal(t, 3, cfg.Notification.RetryAttempts)
}

func TestLoadFromYAML_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "database:\n  driver: sqlite\n  database: im.db\nrealtime:\n  registry: redis\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg := loadFromYAML(path)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "im.db", cfg.Database.Database)
	assert.Equal(t, "redis", cfg.Realtime.Registry)
	assert.Equal(t, 60*time.Second, cfg.Realtime.CallTimeout)
	assert.Equal(t, 30*time.Second, cfg.WebSocket.PingInterval)
}

func TestOverrideWithEnvVars(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REALTIME_CALL_TIMEOUT", "15s")
	t.Setenv("NOTIFY_RETRY_ATTEMPTS", "5")

	cfg := getDefaultConfig()
	overrideWithEnvVars(cfg)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 15*time.Second, cfg.Realtime.CallTimeout)
	assert.Equal(t, 5, cfg.Notification.RetryAttempts)
}

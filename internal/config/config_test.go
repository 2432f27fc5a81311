package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, ":8000", cfg.Server.Addr())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wattscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: "9090"
storage:
  driver: sqlite
  dsn: bills.db
tariff:
  file: /etc/wattscope/tariffs.yaml
digest:
  enabled: true
`), 0o600))

	t.Setenv("WATTSCOPE_DB_DSN", "override.db")
	t.Setenv("WATTSCOPE_AUTO_MIGRATE", "yes")
	t.Setenv("ALERT_MIN_FAILURES", "3")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "override.db", cfg.Storage.DSN)
	assert.True(t, cfg.Storage.AutoMigrate)
	assert.Equal(t, "/etc/wattscope/tariffs.yaml", cfg.Tariff.File)
	assert.True(t, cfg.Digest.Enabled)
	assert.Equal(t, "0 8 1 * *", cfg.Digest.Schedule)
	assert.Equal(t, 3, cfg.Alerts.MinFailures)
}

func TestLoad_MQTTBrokerEnablesPublishing(t *testing.T) {
	t.Setenv("WATTSCOPE_MQTT_BROKER", "broker.local:1883")
	cfg, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "broker.local:1883", cfg.MQTT.Broker)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

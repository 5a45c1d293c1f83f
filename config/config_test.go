package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/kasuganosora/npcsensor/db"
	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_OverridesKeepDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  admin_key: secret
database:
  mode: sqlite
  sqlite_path: /tmp/x.db
cache:
  snapshot_ttl: 30s
  publisher:
    recent: 5
world:
  rooms: 2
  layout:
    - "#####"
    - "#.~.#"
    - "#####"
  room:
    hearing_radius: 4
sensor:
  detection:
    sight_range: 25
  alert:
    decay_delay: 1500ms
  events:
    cooldown_time: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "secret", cfg.Server.AdminKey)
	assert.Equal(t, db.ModeSQLite, cfg.Database.Mode)
	assert.Equal(t, 30*time.Second, cfg.Cache.SnapshotTTL)
	assert.Equal(t, int64(5), cfg.Cache.Publisher.Recent)
	assert.Equal(t, 1024, cfg.Cache.Publisher.QueueSize, "untouched nested default")
	assert.Equal(t, 2, cfg.World.Rooms)
	assert.Len(t, cfg.World.Layout, 3)
	assert.Equal(t, 4.0, cfg.World.Room.HearingRadius)
	assert.Equal(t, 50*time.Millisecond, cfg.World.Room.TickInterval)

	want := sensor.DefaultSettings()
	want.Detection.SightRange = 25
	want.Alert.DecayDelay = 1500 * time.Millisecond
	want.Events.CooldownTime = 250 * time.Millisecond
	assert.Equal(t, want, cfg.Sensor)
}

func TestLoad_InvalidSensorSettingsFail(t *testing.T) {
	path := writeConfig(t, `
sensor:
  alert:
    suspicious_threshold: 0.9
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorIs(t, err, sensor.ErrInvalidSettings)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate_CollectsEverything(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	cfg.Database.Mode = "mysql"
	cfg.Server.Port = 0
	cfg.World.CellSize = 0
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	for _, want := range []string{"mysql_dsn", "server.port", "cell_size"} {
		assert.Contains(t, err.Error(), want)
	}

	cfg = Defaults()
	cfg.Database.Mode = "xml"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestLoad_ShippedConfig(t *testing.T) {
	cfg, err := Load("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, Defaults().Sensor, cfg.Sensor)
	assert.Equal(t, Defaults().World.Room, cfg.World.Room)
	assert.Equal(t, Defaults().Cache.Publisher, cfg.Cache.Publisher)
	assert.True(t, cfg.Journal.Enabled)
}

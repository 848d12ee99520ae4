package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM0", cfg.Serial.Device)
	require.Equal(t, 115200, cfg.Serial.Baud)
	require.Equal(t, time.Second, cfg.Serial.ReadTimeout())
	require.Equal(t, 50*time.Millisecond, cfg.Serial.Grace())
	require.Equal(t, ":8765", cfg.Server.Addr)
	require.Equal(t, 2*time.Second, cfg.Poller.Interval())
	require.Empty(t, cfg.Store.Path)
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	content := []byte(`
serial:
  device: /dev/ttyUSB3
  baud: 57600
poller:
  interval_ms: 500
store:
  path: /var/lib/bridge/drift.db
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB3", cfg.Serial.Device)
	require.Equal(t, 57600, cfg.Serial.Baud)
	require.Equal(t, 500*time.Millisecond, cfg.Poller.Interval())
	require.Equal(t, "/var/lib/bridge/drift.db", cfg.Store.Path)
	// untouched values keep their defaults
	require.Equal(t, ":8765", cfg.Server.Addr)
}

func TestEnvOverridesBeatFileValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("serial:\n  device: /dev/ttyUSB3\n"), 0o644))

	t.Setenv("BRIDGE_SERIAL_DEVICE", "/dev/ttyACM7")
	t.Setenv("BRIDGE_ADDR", ":9000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyACM7", cfg.Serial.Device)
	require.Equal(t, ":9000", cfg.Server.Addr)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
}

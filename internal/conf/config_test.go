package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	settings := validSettings()
	settings.Main.Name = "TestNode"
	settings.MQTT.Broker = "tcp://broker:1883"

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveYAMLConfig(configPath, settings))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)

	var loaded Settings
	require.NoError(t, yaml.Unmarshal(data, &loaded))
	assert.Equal(t, "TestNode", loaded.Main.Name)
	assert.Equal(t, "tcp://broker:1883", loaded.MQTT.Broker)
	assert.Equal(t, settings.Monitor, loaded.Monitor)
	assert.Equal(t, settings.Thresholds, loaded.Thresholds)
	assert.Equal(t, "test.db", loaded.Output.SQLite.Path)
}

func TestSaveYAMLConfigBadPath(t *testing.T) {
	err := SaveYAMLConfig(filepath.Join("/nonexistent", "dir", "config.yaml"), validSettings())
	assert.Error(t, err)
}

func TestDurationHelpers(t *testing.T) {
	settings := validSettings()
	assert.Equal(t, 5*time.Minute, settings.DebounceWindow())
	assert.Equal(t, 30*time.Second, settings.CaptureInterval())
	assert.Equal(t, 10*time.Second, settings.CaptureTimeout())

	settings.Monitor.DebounceMinutes = 0
	assert.Equal(t, time.Duration(0), settings.DebounceWindow())
}

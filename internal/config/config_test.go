package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/navigation"
	"github.com/teslashibe/go-wayfinder/pkg/navigator"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wayfinder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig_MatchesPackages(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	if diff := cmp.Diff(navigator.DefaultConfig(), cfg.Navigator()); diff != "" {
		t.Errorf("Navigator() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(navigation.DefaultConfig(), cfg.Engine()); diff != "" {
		t.Errorf("Engine() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
port: "9000"
nodes_file: venue.yaml
watch: false
navigation:
  debounce_time: 250ms
  distance_step: 2
  invert_turns: true
  keep_calibration_on_stop: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "venue.yaml", cfg.NodesFile)
	assert.False(t, cfg.Watch)
	assert.Equal(t, 250*time.Millisecond, cfg.Navigation.DebounceTime)
	assert.Equal(t, 2.0, cfg.Navigation.DistanceStep)
	assert.True(t, cfg.Navigation.InvertTurns)
	assert.True(t, cfg.Navigator().KeepCalibrationOnStop)

	// Untouched keys keep their defaults.
	def := DefaultConfig()
	assert.Equal(t, def.LogLevel, cfg.LogLevel)
	assert.Equal(t, def.Navigation.UpdateInterval, cfg.Navigation.UpdateInterval)
	assert.Equal(t, def.Navigation.ArriveDistance, cfg.Navigation.ArriveDistance)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "port: [1, 2"))
	assert.Error(t, err)
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("NODES_FILE", "")
	t.Setenv("WAYFINDER_DEBUG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"PORT":            "7070",
		"LOG_LEVEL":       "debug",
		"NODES_FILE":      "/etc/wayfinder/scene.yaml",
		"WAYFINDER_DEBUG": "true",
	}))
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/etc/wayfinder/scene.yaml", cfg.NodesFile)
	assert.True(t, cfg.Debug)

	err = cfg.ApplyEnv(envMap(map[string]string{"WAYFINDER_DEBUG": "maybe"}))
	assert.ErrorContains(t, err, "WAYFINDER_DEBUG")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Port = "http" }},
		{"port out of range", func(c *Config) { c.Port = "70000" }},
		{"log level", func(c *Config) { c.LogLevel = "loud" }},
		{"no nodes file", func(c *Config) { c.NodesFile = " " }},
		{"snap radius", func(c *Config) { c.Navigation.SnapRadius = 0 }},
		{"update interval", func(c *Config) { c.Navigation.UpdateInterval = 0 }},
		{"queue size", func(c *Config) { c.Navigation.QueueSize = 0 }},
		{"turn threshold", func(c *Config) { c.Navigation.TurnThresholdDeg = 200 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

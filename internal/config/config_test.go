package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danpilch/idfmpal/internal/api/prim"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
	assert.True(t, cfg.ExcludeElevator)
	assert.Equal(t, prim.StopMonitoringURL, cfg.Endpoints.StopMonitoring)
	assert.Error(t, cfg.RequireAPIKey())
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Setenv(APIKeyEnv, "")
	path := writeConfig(t, `
api_key: from-file
timeout: 15s
exclude_elevator: false
endpoints:
  stop_monitoring: http://localhost:8080/stop-monitoring
watches:
  - line: C01742
    days: [monday, Friday]
    interval: 5m
    stop: "STIF:StopArea:SP:43135:"
    window: 30m
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.False(t, cfg.ExcludeElevator)
	assert.Equal(t, "http://localhost:8080/stop-monitoring", cfg.Endpoints.StopMonitoring)
	assert.Equal(t, prim.GeneralMessageURL, cfg.Endpoints.GeneralMessage, "unset endpoints keep their default")
	require.Len(t, cfg.Watches, 1)
	assert.Equal(t, 5*time.Minute, cfg.Watches[0].Interval)
	assert.Equal(t, "STIF:StopArea:SP:43135:", cfg.Watches[0].Stop)
	assert.Equal(t, 30*time.Minute, cfg.Watches[0].Window)
	assert.NoError(t, cfg.RequireAPIKey())
}

func TestLoadEnvAPIKeyWins(t *testing.T) {
	t.Setenv(APIKeyEnv, "from-env")
	cfg, err := Load(writeConfig(t, "api_key: from-file\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.APIKey)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero timeout", "timeout: 0s\n"},
		{"bad log level", "log_level: loud\n"},
		{"watch without line", "watches:\n  - interval: 5m\n"},
		{"unknown day", "watches:\n  - line: C01742\n    days: [someday]\n"},
		{"bad endpoint", "endpoints:\n  lines: not a url\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestWatchIsActiveDay(t *testing.T) {
	w := WatchConfig{Line: "C01742", Days: []string{"Monday", "friday"}}
	assert.True(t, w.IsActiveDay(time.Monday))
	assert.True(t, w.IsActiveDay(time.Friday))
	assert.False(t, w.IsActiveDay(time.Sunday))
	assert.True(t, WatchConfig{Line: "C01742"}.IsActiveDay(time.Sunday))
}

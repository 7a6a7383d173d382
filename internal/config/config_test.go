package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), *cfg)
	assert.Equal(t, 100_000.0, cfg.Monitor.Radius)
	assert.Equal(t, 10*time.Minute, cfg.Monitor.ClearoutWindow)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[monitor]
centre_x = 0.0
centre_y = 0.0
radius = 100.0
poll_interval = "500ms"
clearout_window = "600s"

[report]
precision = 2
timezone = "Europe/Helsinki"

[server]
enabled = true
cors_allowed_origins = ["http://localhost:3000"]

[logging]
format = "json"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 0.0, cfg.Monitor.CentreX)
	assert.Equal(t, 100.0, cfg.Monitor.Radius)
	assert.Equal(t, 500*time.Millisecond, cfg.Monitor.PollInterval)
	assert.Equal(t, 600*time.Second, cfg.Monitor.ClearoutWindow)
	assert.Equal(t, 5*time.Second, cfg.Monitor.RequestTimeout, "untouched keys keep their defaults")
	assert.Equal(t, 2, cfg.Report.Precision)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSAllowedOrigins)
	assert.Equal(t, "json", cfg.Logging.Format)

	loc, err := cfg.Report.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Helsinki", loc.String())
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "syntax", body: `[monitor`},
		{name: "unknown key", body: "[monitor]\nradious = 5.0\n"},
		{name: "negative radius", body: "[monitor]\nradius = -1.0\n"},
		{name: "zero interval", body: "[monitor]\npoll_interval = \"0s\"\n"},
		{name: "relative url", body: "[feed]\ndrones_url = \"/drones\"\n"},
		{name: "bad timezone", body: "[report]\ntimezone = \"Mars/Olympus\"\n"},
		{name: "negative precision", body: "[report]\nprecision = -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := Default()

	assert.True(t, cfg.Pipeline.Enabled)
	assert.True(t, cfg.Pipeline.WaitForGPU)
	assert.True(t, cfg.Pipeline.AutoStartBackend)
	assert.True(t, cfg.Pipeline.AutoTrigger)
	assert.Equal(t, "10m", cfg.Pipeline.MaxWait)
	assert.Equal(t, "10s", cfg.Pipeline.PollInterval)
	assert.Equal(t, "http://localhost:8787", cfg.Planner.BaseURL)
	assert.Equal(t, "renderpilot-comfyui", cfg.Backend.ContainerName)
	assert.Equal(t, 8188, cfg.Backend.Port)
	assert.True(t, cfg.History.Enabled)

	require.NoError(t, cfg.postProcess())
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Minute, cfg.Pipeline.MaxWaitD)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.PollIntervalD)
}

func TestLoadFromFile(t *testing.T) {
	content := `
[pipeline]
enabled = true
wait_for_gpu = false
auto_trigger = false
max_wait = "5m"
poll_interval = "2s"

[planner]
base_url = "http://planner:9000"
request_timeout = "10s"

[backend]
container_name = "my-comfyui"
port = 9188

[logging]
level = "debug"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.NoError(t, cfg.postProcess())

	assert.False(t, cfg.Pipeline.WaitForGPU)
	assert.False(t, cfg.Pipeline.AutoTrigger)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.MaxWaitD)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.PollIntervalD)
	assert.Equal(t, "http://planner:9000", cfg.Planner.BaseURL)
	assert.Equal(t, "my-comfyui", cfg.Backend.ContainerName)
	assert.Equal(t, 9188, cfg.Backend.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.True(t, cfg.Pipeline.AutoStartBackend)
	assert.Equal(t, "ghcr.io/comfyanonymous/comfyui:latest", cfg.Backend.Image)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadFromFileBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[pipeline\nenabled ="), 0o644))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestPostProcessRejectsBadDuration(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.MaxWait = "banana"

	err := cfg.postProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_wait")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"zero max wait", func(c *Config) { c.Pipeline.MaxWait = "0s" }, "max_wait"},
		{"zero poll interval", func(c *Config) { c.Pipeline.PollInterval = "0s" }, "poll_interval"},
		{"empty planner url", func(c *Config) { c.Planner.BaseURL = "" }, "base_url"},
		{"bad port", func(c *Config) { c.Backend.Port = 70000 }, "port"},
		{"negative device index", func(c *Config) { c.GPU.DeviceIndex = -1 }, "device_index"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging level"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			require.NoError(t, cfg.postProcess())

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("RENDERPILOT_PLANNER_URL", "http://override:8080")
	t.Setenv("RENDERPILOT_BACKEND_CONTAINER", "override-backend")
	t.Setenv("RENDERPILOT_ENABLED", "false")
	t.Setenv("RENDERPILOT_LOG_LEVEL", "error")

	cfg := Default()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "http://override:8080", cfg.Planner.BaseURL)
	assert.Equal(t, "override-backend", cfg.Backend.ContainerName)
	assert.False(t, cfg.Pipeline.Enabled)
	assert.Equal(t, "error", cfg.Logging.Level)
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Pipeline.Enabled)
	assert.Positive(t, cfg.Pipeline.MaxWaitD)
	assert.Positive(t, cfg.Backend.StartTimeoutD)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandPath("~/data")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "data"), got)

	got, err = expandPath("/abs/path")
	require.NoError(t, err)
	assert.Equal(t, "/abs/path", got)

	got, err = expandPath("")
	require.NoError(t, err)
	assert.Empty(t, got)
}

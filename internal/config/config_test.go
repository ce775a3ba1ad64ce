package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "127.0.0.1:7777", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval.Std())
	assert.Equal(t, 30*time.Second, cfg.Sync.ProbeInterval.Std())
	assert.Equal(t, 15*time.Second, cfg.Backend.SubmitTimeout.Std())
	assert.Equal(t, "/api/health/", cfg.Sync.ProbePath)
	assert.NotEmpty(t, cfg.DataDir)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /var/lib/till
listen_addr: 0.0.0.0:9000
backend:
  base_url: https://pos.example.com
  api_token: tok123
  submit_timeout: 3s
sync:
  interval: 90s
  probe_interval: 10s
  probe_path: /healthz
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/till", cfg.DataDir)
	assert.Equal(t, "0.0.0.0:9000", cfg.ListenAddr)
	assert.Equal(t, "https://pos.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "tok123", cfg.Backend.APIToken)
	assert.Equal(t, 3*time.Second, cfg.Backend.SubmitTimeout.Std())
	assert.Equal(t, 90*time.Second, cfg.Sync.Interval.Std())
	assert.Equal(t, "https://pos.example.com/healthz", cfg.ProbeURL())
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  base_url: https://pos.example.com
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://pos.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "127.0.0.1:7777", cfg.ListenAddr)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval.Std())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7777", cfg.ListenAddr)
}

func TestLoad_MalformedFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: [broken"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sync:
  interval: soon
`), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "till.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend:
  base_url: https://file.example.com
`), 0o600))

	t.Setenv("TILL_BACKEND_URL", "https://env.example.com")
	t.Setenv("TILL_API_TOKEN", "env-token")
	t.Setenv("TILL_DATA_DIR", "/tmp/till-env")
	t.Setenv("TILL_SYNC_INTERVAL", "45s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, "env-token", cfg.Backend.APIToken)
	assert.Equal(t, "/tmp/till-env", cfg.DataDir)
	assert.Equal(t, 45*time.Second, cfg.Sync.Interval.Std())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Backend.BaseURL = "https://pos.example.com"
	assert.NoError(t, cfg.Validate())

	missing := cfg
	missing.Backend.BaseURL = ""
	assert.ErrorContains(t, missing.Validate(), "base_url")

	noDir := cfg
	noDir.DataDir = ""
	assert.ErrorContains(t, noDir.Validate(), "data_dir")

	badInterval := cfg
	badInterval.Sync.Interval = 0
	assert.ErrorContains(t, badInterval.Validate(), "interval")
}

func TestEnsureDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "nested", "till")

	got, err := cfg.EnsureDataDir()
	require.NoError(t, err)
	assert.Equal(t, cfg.DataDir, got)

	info, err := os.Stat(got)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

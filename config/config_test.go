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
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9090\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "rest", cfg.Remote.Driver)
	assert.Equal(t, 1000, cfg.Remote.PageSize)
	assert.Equal(t, 10*time.Second, cfg.Monitor.Interval)
	assert.Equal(t, 5*time.Second, cfg.Monitor.Timeout)
	assert.Equal(t, 10*time.Second, cfg.Sync.ItemTimeout)
	assert.Equal(t, 50, cfg.Sync.HistoryDepth)
	assert.Equal(t, 100, cfg.Sync.AuditFetchLimit)
	assert.Equal(t, "1.0", cfg.Local.SchemaVersion)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
}

func TestLoad_EnvironmentOverridesSecrets(t *testing.T) {
	path := writeConfig(t, "remote:\n  api_key: from-file\n  timeout_seconds: 3\n")
	t.Setenv("REMOTE_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Remote.APIKey)
	assert.Equal(t, 3*time.Second, cfg.Remote.Timeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

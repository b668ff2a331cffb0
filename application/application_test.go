package application

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunLoadsConfigFromEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  name: echo
  ip: Any
  port: 4502
  mode: Sync
admin:
  addr: 127.0.0.1:9090
`)
	t.Setenv("SUPERSOCKET_CONFIG_FILE_PATH", path)

	app := New()
	require.NoError(t, app.Run())
	require.NotNil(t, app.Config())

	cfg, err := app.ServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "echo", cfg.Name)
	assert.Equal(t, 4502, cfg.Port)
	assert.Equal(t, "Sync", cfg.Mode)
	assert.Equal(t, "127.0.0.1:9090", app.AdminAddr())
}

func TestRunLoadsConfigFromFlag(t *testing.T) {
	path := writeConfig(t, `
server:
  name: from-flag
  port: 4502
  mode: Udp
`)

	oldArgs := os.Args
	os.Args = []string{"test", "--config", path}
	defer func() { os.Args = oldArgs }()

	app := New()
	require.NoError(t, app.Run())

	cfg, err := app.ServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "from-flag", cfg.Name)
	assert.Equal(t, "Udp", cfg.Mode)
	assert.Empty(t, app.AdminAddr())
}

func TestRunMissingConfig(t *testing.T) {
	t.Setenv("SUPERSOCKET_CONFIG_FILE_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	app := New()
	assert.Error(t, app.Run())
}

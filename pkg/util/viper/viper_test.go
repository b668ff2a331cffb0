package viper

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  name: echo
  port: 4502
  mode: Sync
admin:
  addr: 127.0.0.1:9090
`)

	cfg := New()
	require.NoError(t, cfg.LoadFile(path))

	type serverSection struct {
		Name string `mapstructure:"name"`
		Port int    `mapstructure:"port"`
		Mode string `mapstructure:"mode"`
	}
	sec := serverSection{}
	require.NoError(t, cfg.UnmarshalKey("server", &sec))
	assert.Equal(t, "echo", sec.Name)
	assert.Equal(t, 4502, sec.Port)
	assert.Equal(t, "Sync", sec.Mode)

	assert.Equal(t, "127.0.0.1:9090", cfg.GetString("admin.addr"))
	// key 不存在时保持零值，不是错误。
	missing := serverSection{}
	assert.NoError(t, cfg.UnmarshalKey("nope", &missing))
	assert.Zero(t, missing.Port)
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, "config.json", `{"server": {"name": "echo-json"}}`)

	cfg := New()
	require.NoError(t, cfg.LoadFile(path))
	assert.Equal(t, "echo-json", cfg.GetString("server.name"))
}

func TestSetDefault(t *testing.T) {
	cfg := New()
	cfg.SetDefault("server.mode", "Sync")
	assert.Equal(t, "Sync", cfg.GetString("server.mode"))
}

func TestLoadMissingFile(t *testing.T) {
	cfg := New()
	assert.Error(t, cfg.LoadFile(filepath.Join(t.TempDir(), "absent.yaml")))
}

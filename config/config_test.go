// server/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreFile, cfg.Store)
	assert.Equal(t, "./notes", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbor.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\nstore: mem\nlogLevel: debug\n"), 0644))
	t.Setenv("ARBOR_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, StoreMem, cfg.Store)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "./notes", cfg.DataDir, "unset keys keep their defaults")
}

func TestLoadEnvBeatsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbor.yml")
	require.NoError(t, os.WriteFile(path, []byte("port: \"9000\"\n"), 0644))
	t.Setenv("ARBOR_CONFIG", path)
	t.Setenv("ARBOR_PORT", "9100")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port)
}

func TestLoadRejectsUnknownStore(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ARBOR_STORE", "carrier-pigeon")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadPostgresNeedsURL(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ARBOR_STORE", StorePostgres)

	_, err := Load()
	require.Error(t, err)

	t.Setenv("ARBOR_DATABASE_URL", "postgres://localhost/arbor")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorePostgres, cfg.Store)
}

func TestLoadMissingExplicitConfigFails(t *testing.T) {
	t.Setenv("ARBOR_CONFIG", filepath.Join(t.TempDir(), "nope.yml"))

	_, err := Load()
	require.Error(t, err)
}

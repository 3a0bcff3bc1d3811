package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"virt-backup/src/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "/run/virt-backup", cfg.RunDir)
	assert.Equal(t, "/var/lib/virt-backup/scratch", cfg.ScratchRoot)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.FreezeTimeout.Std())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
connect_uri: qemu+tcp://backup-host/system
run_dir: /custom/run
log_level: debug
freeze_timeout: 45s
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "qemu+tcp://backup-host/system", cfg.ConnectURI)
	assert.Equal(t, "/custom/run", cfg.RunDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 45*time.Second, cfg.FreezeTimeout.Std())
	// Untouched keys keep their defaults.
	assert.Equal(t, "/var/lib/virt-backup/scratch", cfg.ScratchRoot)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
run_dir: /from-file/run
log_level: warn
`)
	t.Setenv("VIRTBACKUP_RUN_DIR", "/from-env/run")
	t.Setenv("VIRTBACKUP_FREEZE_TIMEOUT", "90s")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/from-env/run", cfg.RunDir)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.FreezeTimeout.Std())
}

func TestLoad_CollectsEveryViolation(t *testing.T) {
	path := writeConfig(t, `
run_dir: relative/run
scratch_root: relative/scratch
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run_dir must be an absolute path")
	assert.Contains(t, err.Error(), "scratch_root must be an absolute path")
}

func TestLoad_RejectsMalformedDuration(t *testing.T) {
	path := writeConfig(t, `
freeze_timeout: quickly
`)
	_, err := config.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

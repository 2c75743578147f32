package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Liwei1020T/appointmentSystem-sub002/pkg/config"
)

const sample = `
worker:
  name: sweeper
  enabled: true
  interval: 15s
  retries: 3
`

type workerConfig struct {
	Worker struct {
		Name     string        `yaml:"name"`
		Enabled  bool          `yaml:"enabled"`
		Interval time.Duration `yaml:"interval"`
		Retries  int           `yaml:"retries"`
	} `yaml:"worker"`
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FilePath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.yaml", sample)
	t.Setenv("CONFIG_PATH", path)

	cfg, err := config.Load("jobs")
	require.NoError(t, err)
	assert.Equal(t, "sweeper", cfg.GetString("worker.name"))

	var out workerConfig
	require.NoError(t, cfg.Decode(&out))
	assert.True(t, out.Worker.Enabled)
	assert.Equal(t, 15*time.Second, out.Worker.Interval)
	assert.Equal(t, 3, out.Worker.Retries)
}

func TestLoad_DirectoryPath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "jobs.yaml", sample)
	t.Setenv("CONFIG_PATH", dir)

	cfg, err := config.Load("jobs")
	require.NoError(t, err)
	assert.Equal(t, "sweeper", cfg.GetString("worker.name"))
}

func TestLoad_EnvOverridesDecodeIntoTypedFields(t *testing.T) {
	path := writeFile(t, t.TempDir(), "jobs.yaml", sample)
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JOBS_WORKER_ENABLED", "false")
	t.Setenv("JOBS_WORKER_INTERVAL", "2m")
	t.Setenv("JOBS_WORKER_RETRIES", "7")

	cfg, err := config.Load("jobs")
	require.NoError(t, err)

	var out workerConfig
	require.NoError(t, cfg.Decode(&out))
	assert.False(t, out.Worker.Enabled)
	assert.Equal(t, 2*time.Minute, out.Worker.Interval)
	assert.Equal(t, 7, out.Worker.Retries)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", t.TempDir())

	_, err := config.Load("does-not-exist")
	assert.Error(t, err)
}

package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps the developer's own config and environment out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("OXYANIM_CONFIG", "")
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "info", c.Log.Level)
	assert.Equal(t, 0, c.Animator.Workers)
	assert.Equal(t, 256, c.Animator.QueueSize)
	assert.Equal(t, 16, c.Animator.BatchSize)
	assert.Equal(t, "reject", c.Clips.DuplicatePolicy)
	assert.Equal(t, "linear", c.Clips.MatrixBlend)
	assert.Empty(t, c.Metrics.Addr)

	level, err := c.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
animator:
  workers: 4
  queue_size: 64
clips:
  duplicate_policy: replace
metrics:
  addr: ":2112"
`), 0o644))
	t.Setenv("OXYANIM_ANIMATOR_WORKERS", "2")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 2, c.Animator.Workers)
	assert.Equal(t, 64, c.Animator.QueueSize)
	assert.Equal(t, "replace", c.Clips.DuplicatePolicy)
	assert.Equal(t, ":2112", c.Metrics.Addr)
}

func TestLoadSearchesWorkingDirectory(t *testing.T) {
	isolate(t)
	require.NoError(t, os.WriteFile("oxyanim.yaml", []byte("log:\n  level: warn\n"), 0o644))

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", c.Log.Level)
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	isolate(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestAnimationOptions(t *testing.T) {
	c := Config{Clips: ClipsConfig{DuplicatePolicy: "Replace", MatrixBlend: "decomposed"}}
	opts, err := c.AnimationOptions()
	require.NoError(t, err)
	assert.Len(t, opts, 2)

	_, err = Config{Clips: ClipsConfig{DuplicatePolicy: "merge"}}.AnimationOptions()
	assert.Error(t, err)
	_, err = Config{Clips: ClipsConfig{MatrixBlend: "cubic"}}.AnimationOptions()
	assert.Error(t, err)
}

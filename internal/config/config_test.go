package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "sqlite", c.Storage.Backend)
	assert.Equal(t, "data", c.Storage.DataDir)
	assert.Equal(t, 5*time.Minute, c.Scheduler.TickInterval)
	assert.Equal(t, 4*time.Hour, c.Scheduler.DueSoonWindow)
	assert.Equal(t, 30*time.Minute, c.Scheduler.ReminderLead)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
storage:
  backend: memory
scheduler:
  tick_interval: 1m
  due_soon_window: 2h
`), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", c.Server.Addr)
	assert.Equal(t, "memory", c.Storage.Backend)
	assert.Equal(t, time.Minute, c.Scheduler.TickInterval)
	assert.Equal(t, 2*time.Hour, c.Scheduler.DueSoonWindow)
	// untouched fields keep their defaults
	assert.Equal(t, 30*time.Minute, c.Scheduler.ReminderLead)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	t.Setenv("CHOREBOARD_ADDR", ":7070")
	t.Setenv("CHOREBOARD_TICK_INTERVAL", "90s")
	t.Setenv("CHOREBOARD_DUE_SOON_WINDOW", "not-a-duration")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7070", c.Server.Addr)
	assert.Equal(t, 90*time.Second, c.Scheduler.TickInterval)
	assert.Equal(t, 4*time.Hour, c.Scheduler.DueSoonWindow, "malformed env var is ignored")
}

func TestLoad_RejectsBadBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  backend: postgres\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 400*time.Millisecond, cfg.Sync.PushDebounce)
	assert.Equal(t, 30*time.Second, cfg.Sync.PullInterval)
	assert.Equal(t, 20*time.Second, cfg.Sync.Timeout)
	assert.Equal(t, 50, cfg.Sync.MessageTail)
	assert.Empty(t, cfg.Remote)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Sync, cfg.Sync)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	body := `
remote: https://sync.example.com
actor_id: tester
sync:
  push_debounce: 150ms
  pull_interval: 10s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://sync.example.com", cfg.Remote)
	assert.Equal(t, "tester", cfg.ActorID)
	assert.Equal(t, 150*time.Millisecond, cfg.Sync.PushDebounce)
	assert.Equal(t, 10*time.Second, cfg.Sync.PullInterval)
	// Untouched fields keep their defaults.
	assert.Equal(t, 50, cfg.Sync.MessageTail)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("remote: https://file.example.com\n"), 0o644))

	t.Setenv("TEMPO_REMOTE_URL", "https://env.example.com")
	t.Setenv("TEMPO_ACTOR_ID", "env-actor")
	t.Setenv("TEMPO_DB_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.Remote)
	assert.Equal(t, "env-actor", cfg.ActorID)
	assert.Equal(t, "/tmp/env.db", cfg.DBPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sync:\n  pull_interval: -5s\n"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pull_interval")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tempo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\t not yaml ["), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "orgpulse.yml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.True(t, cfg.Serve.WatchEnabled())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := Parse([]byte(`
serve:
  listen: ":9000"
  watch: false
  debounce: 2s
  max_sessions: 8
`))
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Serve.Listen)
	assert.False(t, cfg.Serve.WatchEnabled())
	assert.Equal(t, 2*time.Second, cfg.Serve.Debounce)
	assert.Equal(t, 8, cfg.Serve.MaxSessions)
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultListen, cfg.Serve.Listen)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("serve:\n  port: 80\n"))
	require.Error(t, err)
}

func TestParseRejectsNegativeValues(t *testing.T) {
	_, err := Parse([]byte("serve:\n  max_sessions: -1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_sessions")
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orgpulse.yml")
	require.NoError(t, os.WriteFile(path, []byte("serve:\n  listen: \"0.0.0.0:80\"\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "0.0.0.0:80", cfg.Serve.Listen)
	assert.Equal(t, DefaultDebounce, cfg.Serve.Debounce)
}

func TestParseKeepsExplicitZeroValues(t *testing.T) {
	cfg, err := Parse([]byte("serve:\n  max_sessions: 0\n  debounce: 0s\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Serve.MaxSessions)
	assert.Equal(t, time.Duration(0), cfg.Serve.Debounce)
	assert.Equal(t, DefaultListen, cfg.Serve.Listen)
}

func TestParseRejectsExplicitEmptyListen(t *testing.T) {
	_, err := Parse([]byte("serve:\n  listen: \"\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve.listen")
}

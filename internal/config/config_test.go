package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "chatsync.db", cfg.DB)
	assert.Equal(t, 30*time.Second, cfg.Sync.MatchWindow.Std())
	assert.Equal(t, time.Minute, cfg.Sync.ConflictAge.Std())
	assert.Zero(t, cfg.Transport.RefreshInterval)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, "chatsync.yaml", `
self: alice
db: /tmp/chat.db
transport:
  ws_url: ws://localhost:8080/ws
  http_url: http://localhost:8080
  refresh_interval: 2m
sync:
  dedup: true
  match_window: 45s
log:
  level: debug
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Self)
	assert.Equal(t, "/tmp/chat.db", cfg.DB)
	assert.Equal(t, "ws://localhost:8080/ws", cfg.Transport.WSURL)
	assert.Equal(t, 2*time.Minute, cfg.Transport.RefreshInterval.Std())
	assert.Equal(t, 10*time.Second, cfg.Transport.Timeout.Std(), "unset keys keep defaults")
	assert.True(t, cfg.Sync.Dedup)
	assert.Equal(t, 45*time.Second, cfg.Sync.MatchWindow.Std())
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestParse_SchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "colour: blue\n"},
		{"bad ws scheme", "transport:\n  ws_url: http://x\n"},
		{"bad duration", "sync:\n  match_window: soon\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"empty self", "self: \"\"\n"},
		{"wrong type", "sync:\n  dedup: \"yes please\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Parse([]byte(tt.yaml), Default())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfg := Default()
	require.NoError(t, Parse(nil, cfg))
	assert.Equal(t, Default(), cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"CHATSYNC_SELF":             "bob",
		"CHATSYNC_WS_URL":           "wss://chat.example/ws",
		"CHATSYNC_REFRESH_INTERVAL": "30s",
		"CHATSYNC_DEDUP":            "true",
		"CHATSYNC_LOG_LEVEL":        "warn",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	used, err := applyEnv(cfg, lookup)
	require.NoError(t, err)
	assert.True(t, used)
	assert.Equal(t, "bob", cfg.Self)
	assert.Equal(t, "wss://chat.example/ws", cfg.Transport.WSURL)
	assert.Equal(t, 30*time.Second, cfg.Transport.RefreshInterval.Std())
	assert.True(t, cfg.Sync.Dedup)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "chatsync.db", cfg.DB)
}

func TestApplyEnv_Invalid(t *testing.T) {
	env := map[string]string{
		"CHATSYNC_MATCH_WINDOW": "forever",
		"CHATSYNC_DEDUP":        "maybe",
	}
	cfg := Default()
	_, err := applyEnv(cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHATSYNC_MATCH_WINDOW")
	assert.Contains(t, err.Error(), "CHATSYNC_DEDUP")
	assert.Equal(t, 30*time.Second, cfg.Sync.MatchWindow.Std())
}

func TestApplyEnv_NoneSet(t *testing.T) {
	used, err := applyEnv(Default(), func(string) (string, bool) { return "", false })
	require.NoError(t, err)
	assert.False(t, used)
}

func TestLoadDotenv(t *testing.T) {
	path := writeFile(t, ".env", "CHATSYNC_TEST_DOTENV=from-file\n")
	t.Setenv("CHATSYNC_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("CHATSYNC_TEST_DOTENV"))

	require.NoError(t, LoadDotenv(path))
	assert.Equal(t, "from-file", os.Getenv("CHATSYNC_TEST_DOTENV"))

	require.NoError(t, LoadDotenv(filepath.Join(t.TempDir(), "missing.env")))
	require.NoError(t, LoadDotenv(""))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.DB = ""
	cfg.Sync.MatchWindow = 0
	cfg.Log.Level = "chatty"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db path")
	assert.Contains(t, err.Error(), "match window")
	assert.Contains(t, err.Error(), "chatty")
}

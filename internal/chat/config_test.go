package chat

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chat.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = "127.0.0.1:6000"
ws_addr = ":6001"

[limits]
outbound_queue = 128
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:6000", cfg.Server.Addr)
	assert.Equal(t, ":6001", cfg.Server.WSAddr)
	assert.Equal(t, 128, cfg.Limits.OutboundQueue)
	// untouched keys keep their defaults
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, 1024, cfg.Limits.ReadBufferSize)
}

func TestLoadConfig_EnvWinsOverFile(t *testing.T) {
	path := writeConfig(t, `
[server]
addr = ":6000"
[log]
level = "warn"
`)
	t.Setenv("CHAT_SERVER_ADDR", ":7000")
	t.Setenv("CHAT_LIMITS_MAX_MESSAGE_LENGTH", "64")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, 64, cfg.Limits.MaxMessageLength)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_EmptyEnvClearsOptionalAddress(t *testing.T) {
	t.Setenv("CHAT_SERVER_METRICS_ADDR", "")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Empty(t, cfg.Server.MetricsAddr)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("unknown key", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "[server]\nport = 1\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")
	})
	t.Run("bad toml", func(t *testing.T) {
		_, err := LoadConfig(writeConfig(t, "[server\n"))
		assert.Error(t, err)
	})
	t.Run("bad env integer", func(t *testing.T) {
		t.Setenv("CHAT_LIMITS_OUTBOUND_QUEUE", "lots")
		_, err := LoadConfig("")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CHAT_LIMITS_OUTBOUND_QUEUE")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errHas string
	}{
		{"empty addr", func(c *Config) { c.Server.Addr = " " }, "server.addr"},
		{"zero queue", func(c *Config) { c.Limits.OutboundQueue = 0 }, "limits.outbound_queue"},
		{"negative timeout", func(c *Config) { c.Limits.WriteTimeoutSeconds = -1 }, "limits.write_timeout_seconds"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errHas)
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, LogSection{Level: "debug", Format: "json"})
	require.NoError(t, err)

	logger.Debug("hello", "user", "alice")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "alice", rec["user"])

	buf.Reset()
	logger, err = NewLogger(&buf, LogSection{Level: "warn", Format: "text"})
	require.NoError(t, err)
	logger.Info("dropped")
	logger.Warn("kept")
	assert.False(t, strings.Contains(buf.String(), "dropped"))
	assert.Contains(t, buf.String(), "msg=kept")
}

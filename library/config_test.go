package library

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"LBMS_API_URL", "LBMS_DB_PATH", "LBMS_LOG_FILE", "LBMS_LOG_LEVEL", "LBMS_TIMEOUT", "LBMS_RATE_LIMIT"} {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lbms.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("")

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
api_url: https://library.example.com/api/
db_path: /tmp/lbms-test.db
timeout: 5s
rate_limit: 2.5
log_level: debug
`)
	t.Setenv("LBMS_DB_PATH", "/var/lib/lbms.db")
	t.Setenv("LBMS_TIMEOUT", "750ms")

	cfg, err := LoadConfig(path)

	require.NoError(t, err)
	assert.Equal(t, "https://library.example.com/api", cfg.APIURL)
	assert.Equal(t, "/var/lib/lbms.db", cfg.DBPath)
	assert.Equal(t, 750*time.Millisecond, cfg.Timeout)
	assert.Equal(t, 2.5, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "lbms.log", cfg.LogFile)
}

func TestLoadConfig_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad yaml", func(t *testing.T) {
		clearEnv(t)
		_, err := LoadConfig(writeConfig(t, "api_url: [unterminated"))
		assert.Error(t, err)
	})

	t.Run("bad timeout env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LBMS_TIMEOUT", "soon")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})

	t.Run("bad rate limit env", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("LBMS_RATE_LIMIT", "fast")
		_, err := LoadConfig("")
		assert.Error(t, err)
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"empty api url", func(c *Config) { c.APIURL = "" }, true},
		{"api url without scheme", func(c *Config) { c.APIURL = "library.example.com" }, true},
		{"empty db path", func(c *Config) { c.DBPath = "" }, true},
		{"unknown log level", func(c *Config) { c.LogLevel = "chatty" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.Equal(t, tt.wantErr, cfg.Validate() != nil)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestNewLogger_WritesToFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogFile = filepath.Join(t.TempDir(), "lbms.log")

	logger, closer, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Info("hello", "k", "v")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello k=v")
}

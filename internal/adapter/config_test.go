package adapter

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadConfigFrom(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.False(t, cfg.IsConfigured())
	assert.Equal(t, 20, cfg.Catalog.PageSize)
	assert.Equal(t, 10, cfg.Catalog.ScarceThreshold)
	assert.Equal(t, 4*time.Second, cfg.Messages.TTL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, uint32(5), cfg.Gateway.BreakerFailures)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CINESYNC_SERVER_URL", "https://movies.example.com")
	t.Setenv("CINESYNC_LOGGING_LEVEL", "DEBUG")

	cfg, err := LoadConfigFrom(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.True(t, cfg.IsConfigured())
	assert.Equal(t, "https://movies.example.com", cfg.Server.URL)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Server.URL = "http://localhost:8080"
	cfg.Server.Timeout = 10 * time.Second
	cfg.Catalog.PageSize = 50
	cfg.Messages.TTL = 2500 * time.Millisecond
	cfg.Gateway.RequestsPerSecond = 4
	cfg.Gateway.BreakerTimeout = time.Minute
	cfg.Cache.Dir = ""

	require.NoError(t, SaveConfigTo(viper.New(), cfg, dir))
	_, err := os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	got, err := LoadConfigFrom(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, cfg.Server, got.Server)
	assert.Equal(t, 50, got.Catalog.PageSize)
	assert.Equal(t, 2500*time.Millisecond, got.Messages.TTL)
	assert.Equal(t, 4.0, got.Gateway.RequestsPerSecond)
	assert.Equal(t, time.Minute, got.Gateway.BreakerTimeout)
	assert.Empty(t, got.Cache.Dir)
}

func TestLoadConfigRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("server: [unclosed"), 0644))

	_, err := LoadConfigFrom(viper.New(), dir)
	assert.Error(t, err)
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"ERROR":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLogLevel(in), in)
	}
}

func TestNewLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "WARN")

	logger.Info("dropped")
	logger.Warn("kept", "movieID", 7)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "cinesync", entry["app"])
	assert.EqualValues(t, 7, entry["movieID"])
}

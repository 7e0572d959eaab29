package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:3001", cfg.Server.Addr())
	assert.Equal(t, "sqlite", cfg.Favorites.Backend)
	assert.Equal(t, 400*time.Millisecond, cfg.Sessions.Debounce)
	assert.Nil(t, cfg.Sessions.DeviceLatitude)
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seasonstay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
logging:
  format: console
geocoding:
  opencage_key: from-file
sessions:
  idle_timeout: 5m
  device_latitude: 45.1885
  device_longitude: 5.7245
`), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("PORT", "5000")
	t.Setenv("OPENCAGE_API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 5000, cfg.Server.Port, "environment wins over the file")
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "from-file", cfg.Geocoding.OpenCageKey)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.IdleTimeout)
	require.NotNil(t, cfg.Sessions.DeviceLatitude)
	assert.Equal(t, 45.1885, *cfg.Sessions.DeviceLatitude)
	// untouched sections keep their defaults
	assert.Equal(t, "@every 1m", cfg.Sessions.SweepSchedule)
}

func TestLoad_MissingFileIsDefaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Server.Port, cfg.Server.Port)
}

func TestLoad_BadValues(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	t.Run("unparsable port", func(t *testing.T) {
		t.Setenv("PORT", "eighty")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "PORT")
	})

	t.Run("redis without address", func(t *testing.T) {
		t.Setenv("FAVORITES_BACKEND", "redis")
		t.Setenv("REDIS_ADDR", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("half a device position", func(t *testing.T) {
		t.Setenv("DEVICE_LATITUDE", "45.1")
		t.Setenv("DEVICE_LONGITUDE", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("open cors in production", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("CORS_ALLOWED_ORIGINS", "")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "CORS_ALLOWED_ORIGINS")
	})
}

func TestLoad_ProductionWithOrigins(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://seasonstay.fr, https://www.seasonstay.fr")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://seasonstay.fr", "https://www.seasonstay.fr"}, cfg.Server.AllowedOrigins)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info().Msg("hidden")
	logger.Warn().Str("component", "config").Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"component":"config"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

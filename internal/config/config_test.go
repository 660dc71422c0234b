package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, "", cfg.TMDb.APIKey)
		assert.Equal(t, "https://api.themoviedb.org/3", cfg.TMDb.BaseURL)
		assert.Equal(t, 10*time.Second, cfg.TMDb.Timeout)
		assert.Equal(t, 40.0, cfg.TMDb.RequestsPerSecond)
		assert.Equal(t, 10.0, cfg.TMDb.BurstCapacity)
		assert.Equal(t, 30*time.Second, cfg.TMDb.MaxWait)

		assert.False(t, cfg.Redis.Enabled)
		assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
		assert.Equal(t, "tmdb_rate_limit", cfg.Redis.KeyPrefix)
		assert.False(t, cfg.Redis.StrictCounting)

		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)
	})

	t.Run("EnvironmentOverrides", func(t *testing.T) {
		t.Setenv("TMDB_API_KEY", "secret")
		t.Setenv("TMDB_REQUESTS_PER_SECOND", "20")
		t.Setenv("TMDB_BURST_CAPACITY", "5")
		t.Setenv("TMDB_MAX_WAIT", "5s")
		t.Setenv("REDIS_ENABLED", "true")
		t.Setenv("REDIS_ADDR", "redis:6380")
		t.Setenv("SERVER_ADDR", ":9000")
		t.Setenv("LOGGING_LEVEL", "debug")

		cfg, err := Load(viper.New(), "")
		require.NoError(t, err)

		assert.Equal(t, "secret", cfg.TMDb.APIKey)
		assert.Equal(t, 20.0, cfg.TMDb.RequestsPerSecond)
		assert.Equal(t, 5.0, cfg.TMDb.BurstCapacity)
		assert.Equal(t, 5*time.Second, cfg.TMDb.MaxWait)
		assert.True(t, cfg.Redis.Enabled)
		assert.Equal(t, "redis:6380", cfg.Redis.Addr)
		assert.Equal(t, ":9000", cfg.Server.Addr)
		assert.Equal(t, "debug", cfg.Logging.Level)
	})

	t.Run("ConfigFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
tmdb:
  requests_per_second: 4
  burst_capacity: 2
redis:
  enabled: true
  strict_counting: true
logging:
  format: console
`), 0o600))

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)

		assert.Equal(t, 4.0, cfg.TMDb.RequestsPerSecond)
		assert.Equal(t, 2.0, cfg.TMDb.BurstCapacity)
		assert.True(t, cfg.Redis.Enabled)
		assert.True(t, cfg.Redis.StrictCounting)
		assert.Equal(t, "console", cfg.Logging.Format)
		// untouched keys keep their defaults
		assert.Equal(t, ":8080", cfg.Server.Addr)
	})

	t.Run("EnvironmentBeatsFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tmdb:\n  burst_capacity: 2\n"), 0o600))
		t.Setenv("TMDB_BURST_CAPACITY", "7")

		cfg, err := Load(viper.New(), path)
		require.NoError(t, err)
		assert.Equal(t, 7.0, cfg.TMDb.BurstCapacity)
	})

	t.Run("MissingExplicitFile", func(t *testing.T) {
		_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		t.Setenv("TMDB_BURST_CAPACITY", "0")

		_, err := Load(viper.New(), "")
		assert.ErrorIs(t, err, ErrInvalid)
	})
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			TMDb:   TMDbConfig{RequestsPerSecond: 40, BurstCapacity: 10},
			Server: ServerConfig{Addr: ":8080"},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero rate", func(c *Config) { c.TMDb.RequestsPerSecond = 0 }},
		{"negative burst", func(c *Config) { c.TMDb.BurstCapacity = -1 }},
		{"negative max wait", func(c *Config) { c.TMDb.MaxWait = -time.Second }},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }},
		{"no server addr", func(c *Config) { c.Server.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalid)
		})
	}
}

func TestTMDbConfig_Limiter(t *testing.T) {
	lc := TMDbConfig{RequestsPerSecond: 20, BurstCapacity: 4}.Limiter()

	assert.Equal(t, 20.0, lc.RequestsPerSecond)
	assert.Equal(t, 4.0, lc.BurstCapacity)
	assert.Equal(t, time.Minute, lc.WindowSize)
}

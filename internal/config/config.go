// Package config loads the service configuration from defaults, an optional
// YAML file and environment variables, in increasing order of precedence.
//
// Keys map to environment variables by upper-casing and replacing dots with
// underscores: tmdb.requests_per_second is TMDB_REQUESTS_PER_SECOND.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/user/tmdb-ratelimit/internal/limiter"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config is the complete application configuration.
type Config struct {
	TMDb    TMDbConfig    `mapstructure:"tmdb"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// TMDbConfig holds the upstream API settings and its quota.
type TMDbConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	BurstCapacity     float64       `mapstructure:"burst_capacity"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
}

// RedisConfig enables the shared counter store.
type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Addr           string `mapstructure:"addr"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	KeyPrefix      string `mapstructure:"key_prefix"`
	StrictCounting bool   `mapstructure:"strict_counting"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig selects the log level and encoding (json or console).
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers every key with its default. Keys without a default
// are invisible to AutomaticEnv during Unmarshal.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("tmdb.api_key", "")
	v.SetDefault("tmdb.base_url", "https://api.themoviedb.org/3")
	v.SetDefault("tmdb.timeout", "10s")
	v.SetDefault("tmdb.requests_per_second", limiter.DefaultRequestsPerSecond)
	v.SetDefault("tmdb.burst_capacity", limiter.DefaultBurstCapacity)
	v.SetDefault("tmdb.max_wait", "30s")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", limiter.DefaultKeyPrefix)
	v.SetDefault("redis.strict_counting", false)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "45s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Load reads file (optional; empty searches ./ and ./config for
// tmdb-ratelimit.yaml) and the environment into a validated Config.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("tmdb-ratelimit")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// It's OK if the config file doesn't exist, we have defaults
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the limiter or server unusable.
func (c *Config) Validate() error {
	switch {
	case c.TMDb.RequestsPerSecond <= 0:
		return fmt.Errorf("%w: tmdb.requests_per_second must be positive", ErrInvalid)
	case c.TMDb.BurstCapacity <= 0:
		return fmt.Errorf("%w: tmdb.burst_capacity must be positive", ErrInvalid)
	case c.TMDb.MaxWait < 0:
		return fmt.Errorf("%w: tmdb.max_wait must not be negative", ErrInvalid)
	case c.Redis.Enabled && c.Redis.Addr == "":
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", ErrInvalid)
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr is required", ErrInvalid)
	}
	return nil
}

// Limiter returns the quota parameters. The window is fixed at one minute.
func (c TMDbConfig) Limiter() limiter.Config {
	return limiter.Config{
		RequestsPerSecond: c.RequestsPerSecond,
		BurstCapacity:     c.BurstCapacity,
		WindowSize:        limiter.DefaultWindowSize,
	}
}

// Package app holds process-level wiring: configuration loading and logger
// bootstrap.
package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/mcuredefined/backend/internal/database"
	"github.com/mcuredefined/backend/internal/storage"
)

// Config represents the runtime configuration for the backend.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	ContentDB DatabaseConfig  `mapstructure:"content_db"`
	UserDB    DatabaseConfig  `mapstructure:"user_db"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Bridge    BridgeConfig    `mapstructure:"bridge"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Storage   storage.Config  `mapstructure:"storage"`
	CORS      CORSConfig      `mapstructure:"cors"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// DatabaseConfig describes connection options for one of the two databases.
// The user database is owned by the external auth service and may be absent.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// Connection converts the section into the database layer's config type.
func (d DatabaseConfig) Connection() database.Config {
	return database.Config{
		Driver:   d.Driver,
		Path:     d.Path,
		DSN:      d.DSN,
		Host:     d.Host,
		Port:     d.Port,
		Name:     d.Name,
		User:     d.User,
		Password: d.Password,
	}
}

// CacheConfig configures the in-process cache.
type CacheConfig struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// BridgeConfig sizes the blocking-call worker pool.
type BridgeConfig struct {
	Workers int `mapstructure:"workers"`
}

// RateLimitConfig sets the per-client request budgets.
type RateLimitConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	PerSecond int  `mapstructure:"per_second"`
	PerMinute int  `mapstructure:"per_minute"`
}

// CORSConfig lists the origins allowed to call the API. Empty means any.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig initialises application configuration using Viper with sensible
// defaults. Environment variables use the MCU_ prefix with underscores, e.g.
// MCU_SERVER_PORT.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("MCU")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("content_db.enabled", true)
	v.SetDefault("content_db.driver", "sqlite")
	v.SetDefault("content_db.path", "./data/content.sqlite")

	// The user database belongs to the auth service; deployments without it
	// run with author resolution disabled.
	v.SetDefault("user_db.enabled", false)
	v.SetDefault("user_db.driver", "postgres")
	v.SetDefault("user_db.host", "localhost")
	v.SetDefault("user_db.port", 5432)

	v.SetDefault("cache.default_ttl", "5m")

	v.SetDefault("bridge.workers", 8)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.per_second", 15)
	v.SetDefault("rate_limit.per_minute", 120)

	v.SetDefault("storage.folder", "topic-images")

	v.SetDefault("cors.allowed_origins", []string{})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

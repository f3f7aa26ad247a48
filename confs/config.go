package confs

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	EnvLocal = "local"
	EnvProd  = "prod"

	ScopeGlobal    = "global"
	ScopeOwnerOnly = "owner-only"

	devSecret = "grocery-sync-dev-secret"
)

// Config holds every runtime setting of the server.
type Config struct {
	Env       string
	Addr      string
	ListScope string

	DB     DBConfig
	Auth   AuthConfig
	Log    LogConfig
	Redis  RedisConfig
	Limits LimitsConfig

	LocationFlushInterval time.Duration
}

type DBConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type AuthConfig struct {
	Secret   string
	TokenTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type RedisConfig struct {
	URL     string
	Channel string
}

type LimitsConfig struct {
	RPS   float64
	Burst int
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app_env", EnvLocal)
	v.SetDefault("addr", "0.0.0.0:8080")
	v.SetDefault("list_scope", ScopeGlobal)
	v.SetDefault("token_ttl", "24h")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("redis_channel", "grocery-sync:realtime")
	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 10)
	v.SetDefault("location_flush_interval", "1m")
}

// LoadConfig loads environment variables from a .env file if present,
// reads them through v and validates the result.
func LoadConfig(v *viper.Viper) (*Config, error) {
	// Load .env if it exists; ignore error if file not found
	if err := godotenv.Load(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("warning: could not load .env: %v", err)
		}
	}

	SetDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Env:       v.GetString("app_env"),
		Addr:      v.GetString("addr"),
		ListScope: strings.ToLower(v.GetString("list_scope")),
		DB: DBConfig{
			URL:      v.GetString("db_url"),
			Host:     v.GetString("db_host"),
			Port:     v.GetString("db_port"),
			User:     v.GetString("db_user"),
			Password: v.GetString("db_password"),
			Name:     v.GetString("db_name"),
		},
		Auth: AuthConfig{
			Secret:   v.GetString("jwt_secret"),
			TokenTTL: v.GetDuration("token_ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log_level"),
			Format: v.GetString("log_format"),
		},
		Redis: RedisConfig{
			URL:     v.GetString("redis_url"),
			Channel: v.GetString("redis_channel"),
		},
		Limits: LimitsConfig{
			RPS:   v.GetFloat64("rate_limit_rps"),
			Burst: v.GetInt("rate_limit_burst"),
		},
		LocationFlushInterval: v.GetDuration("location_flush_interval"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that have no safe fallback and fills the ones
// that do.
func (c *Config) Validate() error {
	if c.ListScope != ScopeGlobal && c.ListScope != ScopeOwnerOnly {
		return fmt.Errorf("invalid LIST_SCOPE %q: want %q or %q", c.ListScope, ScopeGlobal, ScopeOwnerOnly)
	}
	if c.Auth.Secret == "" {
		if c.Env != EnvLocal {
			return errors.New("JWT_SECRET is required outside the local environment")
		}
		log.Warn("JWT_SECRET not set, using the development secret")
		c.Auth.Secret = devSecret
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("invalid TOKEN_TTL %s", c.Auth.TokenTTL)
	}
	if c.Limits.RPS <= 0 || c.Limits.Burst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	return nil
}

// OwnerOnly reports whether grocery lists are scoped to their owner.
func (c *Config) OwnerOnly() bool {
	return c.ListScope == ScopeOwnerOnly
}

// SetupLogging configures the standard logrus logger from the log settings.
func SetupLogging(lc LogConfig) error {
	level, err := log.ParseLevel(lc.Level)
	if err != nil {
		return fmt.Errorf("invalid LOG_LEVEL: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(lc.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid LOG_FORMAT %q", lc.Format)
	}
	return nil
}

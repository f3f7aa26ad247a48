package confs

import (
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setEnv(t *testing.T, env map[string]string) {
	t.Helper()
	for _, key := range []string{"APP_ENV", "ADDR", "LIST_SCOPE", "JWT_SECRET", "TOKEN_TTL", "REDIS_URL", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST"} {
		t.Setenv(key, env[key])
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	setEnv(t, map[string]string{"JWT_SECRET": "s3cret"})

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)

	assert.Equal(t, EnvLocal, cfg.Env)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr)
	assert.Equal(t, ScopeGlobal, cfg.ListScope)
	assert.False(t, cfg.OwnerOnly())
	assert.Equal(t, "s3cret", cfg.Auth.Secret)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, time.Minute, cfg.LocationFlushInterval)
	assert.Equal(t, 5.0, cfg.Limits.RPS)
	assert.Equal(t, 10, cfg.Limits.Burst)
	assert.Empty(t, cfg.Redis.URL)
	assert.Equal(t, "grocery-sync:realtime", cfg.Redis.Channel)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	setEnv(t, map[string]string{
		"APP_ENV":    EnvProd,
		"ADDR":       "127.0.0.1:9000",
		"LIST_SCOPE": "Owner-Only",
		"JWT_SECRET": "prod-secret",
		"TOKEN_TTL":  "30m",
		"REDIS_URL":  "redis://localhost:6379/0",
	})

	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.True(t, cfg.OwnerOnly())
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Redis.URL)
}

func TestLoadConfig_SecretRules(t *testing.T) {
	setEnv(t, map[string]string{"APP_ENV": EnvProd})
	_, err := LoadConfig(viper.New())
	assert.ErrorContains(t, err, "JWT_SECRET")

	setEnv(t, map[string]string{"APP_ENV": EnvLocal})
	cfg, err := LoadConfig(viper.New())
	require.NoError(t, err)
	assert.Equal(t, devSecret, cfg.Auth.Secret)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Env:       EnvProd,
			ListScope: ScopeGlobal,
			Auth:      AuthConfig{Secret: "x", TokenTTL: time.Hour},
			Limits:    LimitsConfig{RPS: 1, Burst: 1},
		}
	}
	require.NoError(t, valid().Validate())

	c := valid()
	c.ListScope = "everyone"
	assert.ErrorContains(t, c.Validate(), "LIST_SCOPE")

	c = valid()
	c.Auth.TokenTTL = 0
	assert.ErrorContains(t, c.Validate(), "TOKEN_TTL")

	c = valid()
	c.Limits.Burst = 0
	assert.Error(t, c.Validate())
}

func TestSetupLogging(t *testing.T) {
	t.Cleanup(func() {
		log.SetLevel(log.InfoLevel)
		log.SetFormatter(&log.TextFormatter{})
	})

	require.NoError(t, SetupLogging(LogConfig{Level: "debug", Format: "json"}))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	assert.Error(t, SetupLogging(LogConfig{Level: "loud", Format: "text"}))
	assert.Error(t, SetupLogging(LogConfig{Level: "info", Format: "xml"}))
}

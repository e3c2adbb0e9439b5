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
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ltec-order-relay", cfg.App.Name)
		assert.Equal(t, "5555", cfg.App.Port)
		assert.Equal(t, "+94771461925", cfg.Relay.BusinessRecipient)
		assert.Equal(t, "whatsapp-web", cfg.Gateway.Driver)
		assert.True(t, cfg.Gateway.Headless)
		assert.True(t, cfg.Gateway.NoSandbox)
		assert.True(t, cfg.HTTP.RateLimitEnabled)
		assert.Equal(t, []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}, cfg.HTTP.CORSAllowMethods)
		assert.Equal(t, []string{"*"}, cfg.HTTP.CORSAllowOrigins)
		assert.Equal(t, "http://localhost:5555/api", cfg.Storefront.APIBaseURL)
		assert.Equal(t, 10*time.Second, cfg.Storefront.Timeout)
		assert.Equal(t, 3, cfg.Storefront.RetryAttempts)
		assert.Equal(t, "ltec_cart", cfg.Storefront.CartKey)
		assert.Equal(t, 10, cfg.Storefront.MaxQuantity)
		assert.Equal(t, "0.15", cfg.Storefront.TaxRate)
		assert.False(t, cfg.IsProduction())
	})

	t.Run("loads values from environment variables with LTEC prefix", func(t *testing.T) {
		t.Setenv("LTEC_APP_PORT", "3000")
		t.Setenv("LTEC_RELAY_BUSINESS_RECIPIENT", "+94110000000")
		t.Setenv("LTEC_GATEWAY_DRIVER", "log")
		t.Setenv("LTEC_GATEWAY_HEADLESS", "false")
		t.Setenv("LTEC_STOREFRONT_RETRY_ATTEMPTS", "5")
		t.Setenv("LTEC_STOREFRONT_TIMEOUT", "3s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "3000", cfg.App.Port)
		assert.Equal(t, "+94110000000", cfg.Relay.BusinessRecipient)
		assert.Equal(t, "log", cfg.Gateway.Driver)
		assert.False(t, cfg.Gateway.Headless)
		assert.Equal(t, 5, cfg.Storefront.RetryAttempts)
		assert.Equal(t, 3*time.Second, cfg.Storefront.Timeout)
		assert.Equal(t, "http://localhost:3000/api", cfg.Storefront.APIBaseURL)
	})

	t.Run("rejects unknown gateway driver", func(t *testing.T) {
		t.Setenv("LTEC_GATEWAY_DRIVER", "sms")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "gateway.driver")
	})

	t.Run("postgres cart storage requires a dsn", func(t *testing.T) {
		t.Setenv("LTEC_STOREFRONT_CART_STORAGE", "postgres")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database_dsn")
	})
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[app]
port = "7000"

[relay]
business_recipient = "+94770000001"
timezone = "UTC"

[idempotency]
enabled = true
backend = "redis"
ttl = "1h"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o600))

	v := viper.New()
	v.SetConfigFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, v.ReadInConfig())

	cfg, err := fromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.App.Port)
	assert.Equal(t, "+94770000001", cfg.Relay.BusinessRecipient)
	assert.Equal(t, "UTC", cfg.Relay.TimeZone)
	assert.True(t, cfg.Idempotency.Enabled)
	assert.Equal(t, "redis", cfg.Idempotency.Backend)
	assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad idempotency backend", func(c *Config) { c.Idempotency.Backend = "disk" }},
		{"bad cart storage", func(c *Config) { c.Storefront.CartStorage = "cookie" }},
		{"bad timezone", func(c *Config) { c.Relay.TimeZone = "Mars/Olympus" }},
		{"bad sampling", func(c *Config) { c.Telemetry.SamplingRatio = 2 }},
		{"zero attempts", func(c *Config) { c.Storefront.RetryAttempts = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.validate())
		})
	}

	assert.NoError(t, base().validate())
}

func TestRedisAddr(t *testing.T) {
	assert.Equal(t, "cache:6380", RedisConfig{Host: "cache", Port: 6380}.Addr())
}

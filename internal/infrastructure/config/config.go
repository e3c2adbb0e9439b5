package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Log         LogConfig
	HTTP        HTTPConfig
	Relay       RelayConfig
	Gateway     GatewayConfig
	Redis       RedisConfig
	Idempotency IdempotencyConfig
	Telemetry   TelemetryConfig
	Storefront  StorefrontConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
	Output string
}

// HTTPConfig holds HTTP server settings
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
	MaxBodySize       int64
	RateLimitEnabled  bool
	RateLimitRequests int           // submissions allowed per window and client
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// RelayConfig controls order message formatting and routing
type RelayConfig struct {
	BusinessRecipient string
	TimeZone          string
	TimestampLayout   string
}

// GatewayConfig selects and tunes the messaging gateway
type GatewayConfig struct {
	Driver            string // whatsapp-web or log
	CountryCode       string
	SessionDir        string
	RemoteURL         string
	Headless          bool
	NoSandbox         bool
	StartTimeout      time.Duration
	SendTimeout       time.Duration
	PollInterval      time.Duration
	RenderPairingCode bool
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// IdempotencyConfig controls duplicate submission suppression
type IdempotencyConfig struct {
	Enabled bool
	Backend string // memory or redis
	TTL     time.Duration
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// StorefrontConfig holds settings for the storefront client
type StorefrontConfig struct {
	APIBaseURL    string
	Timeout       time.Duration
	RetryAttempts int
	RetryBackoff  time.Duration
	CartStorage   string // file, redis, sqlite or postgres
	CartKey       string
	DataDir       string
	DatabaseDSN   string
	CatalogPath   string
	MaxQuantity   int
	TaxRate       string
}

// Load reads configuration with the following priority (highest first):
// 1. Environment variables with LTEC_ prefix (e.g. LTEC_APP_PORT)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LTEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			ShutdownTimeout:   v.GetDuration("http.shutdown_timeout"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Relay: RelayConfig{
			BusinessRecipient: v.GetString("relay.business_recipient"),
			TimeZone:          v.GetString("relay.timezone"),
			TimestampLayout:   v.GetString("relay.timestamp_layout"),
		},
		Gateway: GatewayConfig{
			Driver:            v.GetString("gateway.driver"),
			CountryCode:       v.GetString("gateway.country_code"),
			SessionDir:        v.GetString("gateway.session_dir"),
			RemoteURL:         v.GetString("gateway.remote_url"),
			Headless:          v.GetBool("gateway.headless"),
			NoSandbox:         v.GetBool("gateway.no_sandbox"),
			StartTimeout:      v.GetDuration("gateway.start_timeout"),
			SendTimeout:       v.GetDuration("gateway.send_timeout"),
			PollInterval:      v.GetDuration("gateway.poll_interval"),
			RenderPairingCode: v.GetBool("gateway.render_pairing_code"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Idempotency: IdempotencyConfig{
			Enabled: v.GetBool("idempotency.enabled"),
			Backend: v.GetString("idempotency.backend"),
			TTL:     v.GetDuration("idempotency.ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
		},
		Storefront: StorefrontConfig{
			APIBaseURL:    v.GetString("storefront.api_base_url"),
			Timeout:       v.GetDuration("storefront.timeout"),
			RetryAttempts: v.GetInt("storefront.retry_attempts"),
			RetryBackoff:  v.GetDuration("storefront.retry_backoff"),
			CartStorage:   v.GetString("storefront.cart_storage"),
			CartKey:       v.GetString("storefront.cart_key"),
			DataDir:       v.GetString("storefront.data_dir"),
			DatabaseDSN:   v.GetString("storefront.database_dsn"),
			CatalogPath:   v.GetString("storefront.catalog_path"),
			MaxQuantity:   v.GetInt("storefront.max_quantity"),
			TaxRate:       v.GetString("storefront.tax_rate"),
		},
	}

	// Booleans that default to true cannot be detected as "empty" after the fact.
	if !v.IsSet("gateway.headless") {
		cfg.Gateway.Headless = true
	}
	if !v.IsSet("gateway.no_sandbox") {
		cfg.Gateway.NoSandbox = true
	}
	if !v.IsSet("gateway.render_pairing_code") {
		cfg.Gateway.RenderPairingCode = true
	}
	if !v.IsSet("http.rate_limit_enabled") {
		cfg.HTTP.RateLimitEnabled = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "ltec-order-relay"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "5555"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateLimitRequests == 0 {
		cfg.HTTP.RateLimitRequests = 20
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if len(cfg.HTTP.CORSAllowOrigins) == 0 {
		cfg.HTTP.CORSAllowOrigins = []string{"*"}
	}
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{
			"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID", "Idempotency-Key",
		}
	}

	if cfg.Relay.BusinessRecipient == "" {
		cfg.Relay.BusinessRecipient = "+94771461925"
	}
	if cfg.Relay.TimeZone == "" {
		cfg.Relay.TimeZone = "Asia/Colombo"
	}
	if cfg.Relay.TimestampLayout == "" {
		cfg.Relay.TimestampLayout = "1/2/2006, 3:04:05 PM"
	}

	if cfg.Gateway.Driver == "" {
		cfg.Gateway.Driver = "whatsapp-web"
	}
	if cfg.Gateway.CountryCode == "" {
		cfg.Gateway.CountryCode = "94"
	}
	if cfg.Gateway.SessionDir == "" {
		cfg.Gateway.SessionDir = ".wwebjs_session"
	}
	if cfg.Gateway.StartTimeout == 0 {
		cfg.Gateway.StartTimeout = 60 * time.Second
	}
	if cfg.Gateway.SendTimeout == 0 {
		cfg.Gateway.SendTimeout = 45 * time.Second
	}
	if cfg.Gateway.PollInterval == 0 {
		cfg.Gateway.PollInterval = 2 * time.Second
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Idempotency.Backend == "" {
		cfg.Idempotency.Backend = "memory"
	}
	if cfg.Idempotency.TTL == 0 {
		cfg.Idempotency.TTL = 24 * time.Hour
	}

	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}

	if cfg.Storefront.APIBaseURL == "" {
		cfg.Storefront.APIBaseURL = "http://localhost:" + cfg.App.Port + "/api"
	}
	if cfg.Storefront.Timeout == 0 {
		cfg.Storefront.Timeout = 10 * time.Second
	}
	if cfg.Storefront.RetryAttempts == 0 {
		cfg.Storefront.RetryAttempts = 3
	}
	if cfg.Storefront.RetryBackoff == 0 {
		cfg.Storefront.RetryBackoff = 2 * time.Second
	}
	if cfg.Storefront.CartStorage == "" {
		cfg.Storefront.CartStorage = "file"
	}
	if cfg.Storefront.CartKey == "" {
		cfg.Storefront.CartKey = "ltec_cart"
	}
	if cfg.Storefront.DataDir == "" {
		cfg.Storefront.DataDir = ".storefront"
	}
	if cfg.Storefront.CatalogPath == "" {
		cfg.Storefront.CatalogPath = "configs/catalog.yaml"
	}
	if cfg.Storefront.MaxQuantity == 0 {
		cfg.Storefront.MaxQuantity = 10
	}
	if cfg.Storefront.TaxRate == "" {
		cfg.Storefront.TaxRate = "0.15"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Gateway.Driver {
	case "whatsapp-web", "log":
	default:
		return fmt.Errorf("gateway.driver must be whatsapp-web or log, got %q", c.Gateway.Driver)
	}
	switch c.Idempotency.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("idempotency.backend must be memory or redis, got %q", c.Idempotency.Backend)
	}
	switch c.Storefront.CartStorage {
	case "memory", "file", "redis", "sqlite", "postgres":
	default:
		return fmt.Errorf("storefront.cart_storage %q is not supported", c.Storefront.CartStorage)
	}
	if c.Storefront.CartStorage == "postgres" && c.Storefront.DatabaseDSN == "" {
		return fmt.Errorf("storefront.database_dsn is required for postgres cart storage")
	}
	if c.Storefront.RetryAttempts < 1 {
		return fmt.Errorf("storefront.retry_attempts must be at least 1")
	}
	if c.Storefront.MaxQuantity < 1 {
		return fmt.Errorf("storefront.max_quantity must be positive")
	}
	if c.HTTP.RateLimitRequests < 1 {
		return fmt.Errorf("http.rate_limit_requests must be positive")
	}
	if _, err := time.LoadLocation(c.Relay.TimeZone); err != nil {
		return fmt.Errorf("relay.timezone: %w", err)
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

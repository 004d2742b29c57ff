package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Storage      StorageConfig
	DB           DBConfig
	Redis        RedisConfig
	Backend      BackendConfig
	Checkout     CheckoutConfig
	CORS         CORSConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"STOREFRONT_APP_ENV" required:"true"`
	Port         string `envconfig:"STOREFRONT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"STOREFRONT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"STOREFRONT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"STOREFRONT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// StorageConfig selects the key-value backend holding carts and customer sessions.
type StorageConfig struct {
	Driver string `envconfig:"STOREFRONT_STORAGE_DRIVER" default:"redis"`
}

// NormalizedDriver lower-cases and trims the configured driver.
func (s StorageConfig) NormalizedDriver() string {
	return strings.ToLower(strings.TrimSpace(s.Driver))
}

type DBConfig struct {
	DSN string `envconfig:"STOREFRONT_DB_DSN"`

	MaxOpenConns    int           `envconfig:"STOREFRONT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"STOREFRONT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"STOREFRONT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"STOREFRONT_REDIS_URL"`
	Address      string        `envconfig:"STOREFRONT_REDIS_ADDR"`
	Password     string        `envconfig:"STOREFRONT_REDIS_PASSWORD"`
	DB           int           `envconfig:"STOREFRONT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"STOREFRONT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"STOREFRONT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"STOREFRONT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"STOREFRONT_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyTTL bounds how long an untouched cart or customer session survives.
	KeyTTL time.Duration `envconfig:"STOREFRONT_REDIS_KEY_TTL" default:"720h"`
}

// BackendConfig points at the commerce API that owns products and orders.
type BackendConfig struct {
	BaseURL        string        `envconfig:"STOREFRONT_BACKEND_BASE_URL" required:"true"`
	OrderTimeout   time.Duration `envconfig:"STOREFRONT_ORDER_TIMEOUT" default:"30s"`
	ProductTimeout time.Duration `envconfig:"STOREFRONT_PRODUCT_TIMEOUT" default:"10s"`
	LookupTimeout  time.Duration `envconfig:"STOREFRONT_LOOKUP_TIMEOUT" default:"5s"`
}

type CheckoutConfig struct {
	SessionTTL    time.Duration `envconfig:"STOREFRONT_CHECKOUT_SESSION_TTL" default:"30m"`
	SweepInterval time.Duration `envconfig:"STOREFRONT_CHECKOUT_SWEEP_INTERVAL" default:"1m"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"STOREFRONT_CORS_ALLOWED_ORIGINS" default:"*"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"STOREFRONT_AUTO_MIGRATE" default:"false"`
}

func (c *Config) validate() error {
	if _, err := url.ParseRequestURI(strings.TrimSpace(c.Backend.BaseURL)); err != nil {
		return fmt.Errorf("%s must be an absolute url: %w", EnvBackendBaseURL, err)
	}
	if c.Backend.OrderTimeout <= 0 {
		return fmt.Errorf("%s must be positive", EnvOrderTimeout)
	}

	switch c.Storage.NormalizedDriver() {
	case StorageDriverMemory:
		return nil
	case StorageDriverRedis:
		if c.Redis.URL == "" && c.Redis.Address == "" {
			return fmt.Errorf("either %s or %s is required for the redis storage driver", EnvRedisURL, EnvRedisAddr)
		}
		return nil
	case StorageDriverPostgres:
		if c.DB.DSN == "" {
			return fmt.Errorf("%s is required for the postgres storage driver", EnvDBDSN)
		}
		return nil
	case StorageDriverSQLite:
		if c.DB.DSN == "" {
			c.DB.DSN = DefaultSQLiteDSN
		}
		return nil
	default:
		return fmt.Errorf("unsupported %s %q", EnvStorageDriver, c.Storage.Driver)
	}
}

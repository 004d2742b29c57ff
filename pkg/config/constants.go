package config

const EnvPrefix = "STOREFRONT"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverRedis    = "redis"
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"
)

const DefaultSQLiteDSN = "file:storefront.db?cache=shared"

const (
	EnvAppEnv         = "STOREFRONT_APP_ENV"
	EnvPort           = "STOREFRONT_APP_PORT"
	EnvStorageDriver  = "STOREFRONT_STORAGE_DRIVER"
	EnvDBDSN          = "STOREFRONT_DB_DSN"
	EnvRedisURL       = "STOREFRONT_REDIS_URL"
	EnvRedisAddr      = "STOREFRONT_REDIS_ADDR"
	EnvBackendBaseURL = "STOREFRONT_BACKEND_BASE_URL"
	EnvOrderTimeout   = "STOREFRONT_ORDER_TIMEOUT"
	EnvSessionTTL     = "STOREFRONT_CHECKOUT_SESSION_TTL"
	EnvCORSOrigins    = "STOREFRONT_CORS_ALLOWED_ORIGINS"
)

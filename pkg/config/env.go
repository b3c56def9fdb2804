package config

// EnvPrefix namespaces every variable read by Load.
const EnvPrefix = "ERPCORE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv       = "ERPCORE_APP_ENV"
	EnvPort         = "ERPCORE_APP_PORT"
	EnvLogLevel     = "ERPCORE_LOG_LEVEL"
	EnvLogWarnStack = "ERPCORE_LOG_WARN_STACK"

	EnvDBDSN      = "ERPCORE_DB_DSN"
	EnvDBDriver   = "ERPCORE_DB_DRIVER"
	EnvDBHost     = "ERPCORE_DB_HOST"
	EnvDBPort     = "ERPCORE_DB_PORT"
	EnvDBUser     = "ERPCORE_DB_USER"
	EnvDBPassword = "ERPCORE_DB_PASSWORD"
	EnvDBName     = "ERPCORE_DB_NAME"
	EnvDBSSLMode  = "ERPCORE_DB_SSLMODE"

	EnvRedisURL = "ERPCORE_REDIS_URL"

	EnvJWTSecret  = "ERPCORE_JWT_SECRET"
	EnvJWTIssuer  = "ERPCORE_JWT_ISSUER"
	EnvJWTExpMins = "ERPCORE_JWT_EXPIRATION_MINUTES"

	EnvReservationTTL = "ERPCORE_INVENTORY_RESERVATION_TTL"
	EnvLockBackend    = "ERPCORE_INVENTORY_LOCK_BACKEND"
	EnvLockWait       = "ERPCORE_INVENTORY_LOCK_WAIT"

	EnvGCPProjectID      = "ERPCORE_GCP_PROJECT_ID"
	EnvPubSubEventsTopic = "ERPCORE_PUBSUB_EVENTS_TOPIC"
	EnvPubSubOrdersTopic = "ERPCORE_PUBSUB_ORDERS_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

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
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	Inventory    InventoryConfig
	Limits       LimitsConfig
	Cron         CronConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Breaker      BreakerConfig
	RateLimit    RateLimitConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Inventory.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ERPCORE_APP_ENV" required:"true"`
	Port         string `envconfig:"ERPCORE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"ERPCORE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ERPCORE_LOG_WARN_STACK" default:"false"`
	// MetricsAddr is where background workers expose /metrics. The api
	// serves metrics on its own router instead.
	MetricsAddr string `envconfig:"ERPCORE_METRICS_ADDR"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ERPCORE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ERPCORE_DB_DSN"`
	Driver string `envconfig:"ERPCORE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ERPCORE_DB_HOST"`
	LegacyPort     int    `envconfig:"ERPCORE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ERPCORE_DB_USER"`
	LegacyPassword string `envconfig:"ERPCORE_DB_PASSWORD"`
	LegacyName     string `envconfig:"ERPCORE_DB_NAME"`
	LegacySSLMode  string `envconfig:"ERPCORE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ERPCORE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ERPCORE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ERPCORE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ERPCORE_DB_CONN_MAX_IDLE_TIME" default:"10m"`

	// SlowQuery is the duration above which statements are logged at warn.
	SlowQuery time.Duration `envconfig:"ERPCORE_DB_SLOW_QUERY" default:"500ms"`
	// TxAttempts bounds how often WithTx reruns a transaction that lost a
	// serialization or deadlock race.
	TxAttempts int `envconfig:"ERPCORE_DB_TX_ATTEMPTS" default:"3"`
}

// IsSQLite reports whether the sqlite dialector was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), "sqlite")
}

type RedisConfig struct {
	URL          string        `envconfig:"ERPCORE_REDIS_URL"`
	Address      string        `envconfig:"ERPCORE_REDIS_ADDR"`
	Password     string        `envconfig:"ERPCORE_REDIS_PASSWORD"`
	DB           int           `envconfig:"ERPCORE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ERPCORE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ERPCORE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ERPCORE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ERPCORE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ERPCORE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// Enabled reports whether any redis endpoint is configured.
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"ERPCORE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ERPCORE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ERPCORE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ERPCORE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ERPCORE_AUTO_MIGRATE" default:"false"`
}

const (
	LockBackendLocal = "local"
	LockBackendRedis = "redis"
)

type InventoryConfig struct {
	ReservationTTL time.Duration `envconfig:"ERPCORE_INVENTORY_RESERVATION_TTL" default:"1h"`
	LockBackend    string        `envconfig:"ERPCORE_INVENTORY_LOCK_BACKEND" default:"local"`
	LockWait       time.Duration `envconfig:"ERPCORE_INVENTORY_LOCK_WAIT" default:"5s"`
	LockTTL        time.Duration `envconfig:"ERPCORE_INVENTORY_LOCK_TTL" default:"30s"`
	LockRetry      time.Duration `envconfig:"ERPCORE_INVENTORY_LOCK_RETRY" default:"25ms"`
}

func (i InventoryConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(i.LockBackend)) {
	case LockBackendLocal, LockBackendRedis:
	default:
		return fmt.Errorf("invalid %s %q (expected local or redis)", EnvLockBackend, i.LockBackend)
	}
	if i.ReservationTTL <= 0 {
		return fmt.Errorf("%s must be positive", EnvReservationTTL)
	}
	if i.LockWait <= 0 {
		return fmt.Errorf("%s must be positive", EnvLockWait)
	}
	return nil
}

// UsesRedisLock reports whether stock cells are serialized through redis.
func (i InventoryConfig) UsesRedisLock() bool {
	return strings.EqualFold(strings.TrimSpace(i.LockBackend), LockBackendRedis)
}

// LimitsConfig holds the default plan maxima. Zero means unlimited.
type LimitsConfig struct {
	MaxVariants    int64 `envconfig:"ERPCORE_LIMITS_MAX_VARIANTS" default:"0"`
	MaxLocations   int64 `envconfig:"ERPCORE_LIMITS_MAX_LOCATIONS" default:"0"`
	MaxCustomers   int64 `envconfig:"ERPCORE_LIMITS_MAX_CUSTOMERS" default:"0"`
	MaxBundleEdges int64 `envconfig:"ERPCORE_LIMITS_MAX_BUNDLE_EDGES" default:"0"`
}

type CronConfig struct {
	SweepInterval time.Duration `envconfig:"ERPCORE_CRON_SWEEP_INTERVAL" default:"1m"`
	LockTTL       time.Duration `envconfig:"ERPCORE_CRON_LOCK_TTL" default:"5m"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ERPCORE_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ERPCORE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ERPCORE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	EventsTopic string `envconfig:"ERPCORE_PUBSUB_EVENTS_TOPIC" default:"erp-domain-events"`
	OrdersTopic string `envconfig:"ERPCORE_PUBSUB_ORDERS_TOPIC"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"ERPCORE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"ERPCORE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"ERPCORE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type BreakerConfig struct {
	FailureThreshold uint32        `envconfig:"ERPCORE_BREAKER_FAILURE_THRESHOLD" default:"5"`
	OpenTimeout      time.Duration `envconfig:"ERPCORE_BREAKER_OPEN_TIMEOUT" default:"30s"`
	HalfOpenRequests uint32        `envconfig:"ERPCORE_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

// RateLimitConfig throttles the tenant API. Zero limits disable a scope.
type RateLimitConfig struct {
	Window      time.Duration `envconfig:"ERPCORE_RATE_LIMIT_WINDOW" default:"1m"`
	TenantLimit int           `envconfig:"ERPCORE_RATE_LIMIT_TENANT" default:"0"`
	UserLimit   int           `envconfig:"ERPCORE_RATE_LIMIT_USER" default:"0"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

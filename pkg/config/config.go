package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "PARTSDIRECT"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	EnvAppEnv     = "PARTSDIRECT_APP_ENV"
	EnvPort       = "PARTSDIRECT_APP_PORT"
	EnvDBDSN      = "PARTSDIRECT_DB_DSN"
	EnvDBHost     = "PARTSDIRECT_DB_HOST"
	EnvDBUser     = "PARTSDIRECT_DB_USER"
	EnvDBName     = "PARTSDIRECT_DB_NAME"
	EnvRedisURL   = "PARTSDIRECT_REDIS_URL"
	EnvJWTSecret  = "PARTSDIRECT_JWT_SECRET"
	EnvJWTIssuer  = "PARTSDIRECT_JWT_ISSUER"
	EnvWebhookKey = "PARTSDIRECT_PAYMENTS_WEBHOOK_SECRET"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Payments     PaymentsConfig
	Checkout     CheckoutConfig
	Coupons      CouponsConfig
	Scheduler    SchedulerConfig
	Outbox       OutboxConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PARTSDIRECT_APP_ENV" required:"true"`
	Port         string `envconfig:"PARTSDIRECT_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"PARTSDIRECT_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"PARTSDIRECT_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"PARTSDIRECT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"PARTSDIRECT_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"PARTSDIRECT_DB_DSN"`
	Driver string `envconfig:"PARTSDIRECT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PARTSDIRECT_DB_HOST"`
	LegacyPort     int    `envconfig:"PARTSDIRECT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PARTSDIRECT_DB_USER"`
	LegacyPassword string `envconfig:"PARTSDIRECT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PARTSDIRECT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PARTSDIRECT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PARTSDIRECT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PARTSDIRECT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PARTSDIRECT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PARTSDIRECT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	// SlowQuery is the duration above which a statement is logged at warn.
	SlowQuery time.Duration `envconfig:"PARTSDIRECT_DB_SLOW_QUERY" default:"200ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PARTSDIRECT_REDIS_URL"`
	Address      string        `envconfig:"PARTSDIRECT_REDIS_ADDR"`
	Password     string        `envconfig:"PARTSDIRECT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PARTSDIRECT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PARTSDIRECT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PARTSDIRECT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PARTSDIRECT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PARTSDIRECT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PARTSDIRECT_REDIS_WRITE_TIMEOUT" default:"5s"`
	// KeyPrefix namespaces every key so several deployments can share a server.
	KeyPrefix    string        `envconfig:"PARTSDIRECT_REDIS_KEY_PREFIX" default:"pd"`
}

// JWTConfig holds the verification settings for tokens minted by the auth service.
type JWTConfig struct {
	Secret string `envconfig:"PARTSDIRECT_JWT_SECRET" required:"true"`
	Issuer string `envconfig:"PARTSDIRECT_JWT_ISSUER" required:"true"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PARTSDIRECT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PARTSDIRECT_AUTO_MIGRATE" default:"false"`
	CouponCache bool `envconfig:"PARTSDIRECT_FEATURE_COUPON_CACHE" default:"true"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"PARTSDIRECT_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	OrdersTopic string `envconfig:"PARTSDIRECT_PUBSUB_ORDERS_TOPIC" default:"partsdirect-orders"`
	DomainTopic string `envconfig:"PARTSDIRECT_PUBSUB_DOMAIN_TOPIC" default:"partsdirect-domain-events"`
}

// StripeConfig is used only to look up payment intents during
// reconciliation. Env must agree with the key's own mode.
type StripeConfig struct {
	APIKey            string        `envconfig:"PARTSDIRECT_STRIPE_API_KEY"`
	Env               string        `envconfig:"PARTSDIRECT_STRIPE_ENV" default:"test"`
	Timeout           time.Duration `envconfig:"PARTSDIRECT_STRIPE_TIMEOUT" default:"10s"`
	MaxNetworkRetries int           `envconfig:"PARTSDIRECT_STRIPE_MAX_RETRIES" default:"2"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type PaymentsConfig struct {
	WebhookSecret  string        `envconfig:"PARTSDIRECT_PAYMENTS_WEBHOOK_SECRET" required:"true"`
	PollAttempts   int           `envconfig:"PARTSDIRECT_PAYMENTS_POLL_ATTEMPTS" default:"3"`
	PollDelay      time.Duration `envconfig:"PARTSDIRECT_PAYMENTS_POLL_DELAY" default:"2s"`
	IdempotencyTTL time.Duration `envconfig:"PARTSDIRECT_PAYMENTS_IDEMPOTENCY_TTL" default:"72h"`
}

type CheckoutConfig struct {
	DraftTTL            time.Duration `envconfig:"PARTSDIRECT_CHECKOUT_DRAFT_TTL" default:"30m"`
	OrderNumberAttempts int           `envconfig:"PARTSDIRECT_CHECKOUT_ORDER_NUMBER_ATTEMPTS" default:"3"`
	OriginState         string        `envconfig:"PARTSDIRECT_CHECKOUT_ORIGIN_STATE" default:"KA"`
}

type CouponsConfig struct {
	CacheTTL time.Duration `envconfig:"PARTSDIRECT_COUPONS_CACHE_TTL" default:"10m"`
}

type SchedulerConfig struct {
	AutoConfirmInterval time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_AUTO_CONFIRM_INTERVAL" default:"30m"`
	AutoConfirmGrace    time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_AUTO_CONFIRM_GRACE" default:"6h"`
	AutoConfirmLockTTL  time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_AUTO_CONFIRM_LOCK_TTL" default:"25m"`
	DraftExpiryInterval time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_DRAFT_EXPIRY_INTERVAL" default:"10m"`
	DraftExpiryLockTTL  time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_DRAFT_EXPIRY_LOCK_TTL" default:"8m"`
	OutboxRetention     time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_OUTBOX_RETENTION" default:"720h"`
	OutboxCleanupEvery  time.Duration `envconfig:"PARTSDIRECT_SCHEDULER_OUTBOX_CLEANUP_INTERVAL" default:"24h"`
}

// OutboxConfig tunes the relay. Parallelism bounds how many aggregates are
// published at once; one aggregate is always published serially.
type OutboxConfig struct {
	BatchSize      int           `envconfig:"PARTSDIRECT_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"PARTSDIRECT_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"PARTSDIRECT_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Parallelism    int           `envconfig:"PARTSDIRECT_OUTBOX_PUBLISH_PARALLELISM" default:"8"`
	PublishTimeout time.Duration `envconfig:"PARTSDIRECT_OUTBOX_PUBLISH_TIMEOUT" default:"15s"`
}

// RateLimitConfig throttles the unauthenticated-friendly coupon preview surface.
type RateLimitConfig struct {
	PreviewWindow time.Duration `envconfig:"PARTSDIRECT_RATE_LIMIT_PREVIEW_WINDOW" default:"1m"`
	PreviewLimit  int           `envconfig:"PARTSDIRECT_RATE_LIMIT_PREVIEW_LIMIT" default:"30"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"PARTSDIRECT_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

func (db *DBConfig) ensureDSN(sqlite bool) error {
	if db.DSN != "" {
		return nil
	}
	if sqlite {
		db.DSN = "file:partsdirect.db?_foreign_keys=on"
		return nil
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

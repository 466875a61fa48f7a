package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Zarinpal  ZarinpalConfig
	Pricing   PricingConfig
	Renewal   RenewalConfig
	Cron      CronConfig
	GCP       GCPConfig
	PubSub    PubSubConfig
	Outbox    OutboxConfig
	Metrics   MetricsConfig
	RateLimit RateLimitConfig
	Features  FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Renewal.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MigrationConfig is the subset needed by tooling that only talks to Postgres.
type MigrationConfig struct {
	App      AppConfig
	DB       DBConfig
	Features FeatureFlagsConfig
}

// LoadMigration reads only the database-facing settings.
func LoadMigration() (*MigrationConfig, error) {
	var cfg MigrationConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"DIGIMENU_APP_ENV" required:"true"`
	Port         string `envconfig:"DIGIMENU_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"DIGIMENU_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"DIGIMENU_LOG_WARN_STACK" default:"false"`
	// CORSOrigins lists the dashboard origins allowed to call the API.
	CORSOrigins []string `envconfig:"DIGIMENU_CORS_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"DIGIMENU_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"DIGIMENU_DB_DSN"`
	Driver string `envconfig:"DIGIMENU_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"DIGIMENU_DB_HOST"`
	LegacyPort     int    `envconfig:"DIGIMENU_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"DIGIMENU_DB_USER"`
	LegacyPassword string `envconfig:"DIGIMENU_DB_PASSWORD"`
	LegacyName     string `envconfig:"DIGIMENU_DB_NAME"`
	LegacySSLMode  string `envconfig:"DIGIMENU_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"DIGIMENU_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"DIGIMENU_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"DIGIMENU_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"DIGIMENU_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"DIGIMENU_REDIS_URL" required:"true"`
	Address      string        `envconfig:"DIGIMENU_REDIS_ADDR"`
	Password     string        `envconfig:"DIGIMENU_REDIS_PASSWORD"`
	DB           int           `envconfig:"DIGIMENU_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"DIGIMENU_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"DIGIMENU_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"DIGIMENU_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"DIGIMENU_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"DIGIMENU_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig is shared with the account service that issues owner tokens.
// ExpirationMinutes only applies to tokens minted here (admin tooling, tests).
type JWTConfig struct {
	Secret            string `envconfig:"DIGIMENU_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"DIGIMENU_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"DIGIMENU_JWT_EXPIRATION_MINUTES" default:"60"`
}

type ZarinpalConfig struct {
	MerchantID   string        `envconfig:"DIGIMENU_ZARINPAL_MERCHANT_ID" required:"true"`
	BaseURL      string        `envconfig:"DIGIMENU_ZARINPAL_BASE_URL" default:"https://api.zarinpal.com/pg/v4/payment"`
	StartPayURL  string        `envconfig:"DIGIMENU_ZARINPAL_STARTPAY_URL" default:"https://www.zarinpal.com/pg/StartPay/"`
	CallbackURL  string        `envconfig:"DIGIMENU_ZARINPAL_CALLBACK_URL" required:"true"`
	Timeout      time.Duration `envconfig:"DIGIMENU_ZARINPAL_TIMEOUT" default:"10s"`
	CallbackTTL  time.Duration `envconfig:"DIGIMENU_ZARINPAL_CALLBACK_TTL" default:"24h"`
	Description  string        `envconfig:"DIGIMENU_ZARINPAL_DESCRIPTION" default:"digital menu order"`
	ContactEmail string        `envconfig:"DIGIMENU_ZARINPAL_CONTACT_EMAIL"`
	// ResultURL is the dashboard page payers land on after the callback. Empty
	// means the callback answers with JSON.
	ResultURL string `envconfig:"DIGIMENU_ZARINPAL_RESULT_URL"`
}

type PricingConfig struct {
	FallbackRate string `envconfig:"DIGIMENU_PRICING_FALLBACK_RATE" default:"60000"`
}

type RenewalConfig struct {
	HorizonDays        int   `envconfig:"DIGIMENU_RENEWAL_HORIZON_DAYS" default:"4"`
	ReminderMinDays    int   `envconfig:"DIGIMENU_RENEWAL_REMINDER_MIN_DAYS" default:"3"`
	ReminderMaxDays    int   `envconfig:"DIGIMENU_RENEWAL_REMINDER_MAX_DAYS" default:"7"`
	OrderBasePrice     int64 `envconfig:"DIGIMENU_RENEWAL_ORDER_BASE_PRICE" default:"990000"`
	OrderSeoExtraPrice int64 `envconfig:"DIGIMENU_RENEWAL_ORDER_SEO_EXTRA_PRICE" default:"390000"`
	ExtensionDays      int   `envconfig:"DIGIMENU_RENEWAL_EXTENSION_DAYS" default:"30"`
}

func (r RenewalConfig) validate() error {
	if r.HorizonDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvRenewalHorizonDays)
	}
	if r.ReminderMinDays < 0 || r.ReminderMaxDays < r.ReminderMinDays {
		return fmt.Errorf("invalid reminder window %d..%d", r.ReminderMinDays, r.ReminderMaxDays)
	}
	if r.ExtensionDays <= 0 {
		return fmt.Errorf("%s must be positive", EnvRenewalExtensionDays)
	}
	return nil
}

type CronConfig struct {
	Interval time.Duration `envconfig:"DIGIMENU_CRON_INTERVAL" default:"24h"`
	LockTTL  time.Duration `envconfig:"DIGIMENU_CRON_LOCK_TTL" default:"25h"`
}

type GCPConfig struct {
	ProjectID       string `envconfig:"DIGIMENU_GCP_PROJECT_ID"`
	CredentialsJSON string `envconfig:"DIGIMENU_GCP_CREDENTIALS_JSON"`
}

type PubSubConfig struct {
	DomainTopic string `envconfig:"DIGIMENU_PUBSUB_DOMAIN_TOPIC" default:"digimenu-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"DIGIMENU_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"DIGIMENU_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"DIGIMENU_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"DIGIMENU_OUTBOX_RETENTION_DAYS" default:"30"`
}

type MetricsConfig struct {
	Addr string `envconfig:"DIGIMENU_METRICS_ADDR" default:":9090"`
}

type RateLimitConfig struct {
	CallbackWindow     time.Duration `envconfig:"DIGIMENU_RATE_LIMIT_CALLBACK_WINDOW" default:"1m"`
	CallbackLimit      int           `envconfig:"DIGIMENU_RATE_LIMIT_CALLBACK_LIMIT" default:"30"`
	PaymentStartWindow time.Duration `envconfig:"DIGIMENU_RATE_LIMIT_PAYMENT_START_WINDOW" default:"1m"`
	PaymentStartLimit  int64         `envconfig:"DIGIMENU_RATE_LIMIT_PAYMENT_START_LIMIT" default:"5"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"DIGIMENU_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
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

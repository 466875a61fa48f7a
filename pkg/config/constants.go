package config

// EnvPrefix namespaces envconfig lookups; explicit tags are used as fallbacks.
const EnvPrefix = "DIGIMENU"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv   = "DIGIMENU_APP_ENV"
	EnvPort     = "DIGIMENU_APP_PORT"
	EnvLogLevel = "DIGIMENU_LOG_LEVEL"

	EnvDBDSN  = "DIGIMENU_DB_DSN"
	EnvDBHost = "DIGIMENU_DB_HOST"
	EnvDBUser = "DIGIMENU_DB_USER"
	EnvDBName = "DIGIMENU_DB_NAME"

	EnvRedisURL = "DIGIMENU_REDIS_URL"

	EnvJWTSecret = "DIGIMENU_JWT_SECRET"
	EnvJWTIssuer = "DIGIMENU_JWT_ISSUER"

	EnvZarinpalMerchantID  = "DIGIMENU_ZARINPAL_MERCHANT_ID"
	EnvZarinpalCallbackURL = "DIGIMENU_ZARINPAL_CALLBACK_URL"

	EnvPricingFallbackRate = "DIGIMENU_PRICING_FALLBACK_RATE"

	EnvRenewalHorizonDays   = "DIGIMENU_RENEWAL_HORIZON_DAYS"
	EnvRenewalReminderMin   = "DIGIMENU_RENEWAL_REMINDER_MIN_DAYS"
	EnvRenewalReminderMax   = "DIGIMENU_RENEWAL_REMINDER_MAX_DAYS"
	EnvRenewalExtensionDays = "DIGIMENU_RENEWAL_EXTENSION_DAYS"

	EnvCronInterval = "DIGIMENU_CRON_INTERVAL"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

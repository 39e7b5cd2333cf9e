package config

// EnvPrefix is empty because every field carries its full WISH_ name.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv    = "WISH_APP_ENV"
	EnvPort      = "WISH_APP_PORT"
	EnvLogLevel  = "WISH_LOG_LEVEL"
	EnvDBDSN     = "WISH_DB_DSN"
	EnvDBHost    = "WISH_DB_HOST"
	EnvDBUser    = "WISH_DB_USER"
	EnvDBName    = "WISH_DB_NAME"
	EnvRedisURL  = "WISH_REDIS_URL"
	EnvJWTSecret = "WISH_JWT_SECRET"
	EnvJWTIssuer = "WISH_JWT_ISSUER"

	EnvExtensionID    = "WISH_ALLOWED_EXTENSION_ID"
	EnvAddDebounce    = "WISH_SYNC_ADD_DEBOUNCE"
	EnvPubSubTopic    = "WISH_PUBSUB_ENRICHMENT_TOPIC"
	EnvPaymentsPayTo  = "WISH_PAYMENTS_PAY_TO"
	EnvPaymentsVerify = "WISH_PAYMENTS_VERIFIER_URL"
	EnvPaymentsWallet = "WISH_PAYMENTS_WALLET_URL"
	EnvOnrampKeyID    = "WISH_ONRAMP_API_KEY_ID"
	EnvOnrampSecret   = "WISH_ONRAMP_API_KEY_SECRET"
	EnvGCPProjectID   = "WISH_GCP_PROJECT_ID"
	EnvEnrichmentText = "WISH_ENRICHMENT_MAX_TEXT_LENGTH"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

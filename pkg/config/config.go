package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App        AppConfig
	DB         DBConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Sync       SyncConfig
	Enrichment EnrichmentConfig
	GCP        GCPConfig
	PubSub     PubSubConfig
	Payments   PaymentsConfig
	Onramp     OnrampConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"WISH_APP_ENV" required:"true"`
	Port         string `envconfig:"WISH_APP_PORT" default:"8000"`
	LogLevel     string `envconfig:"WISH_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"WISH_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"WISH_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool   `envconfig:"WISH_AUTO_MIGRATE" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"WISH_DB_DSN"`

	Host     string `envconfig:"WISH_DB_HOST"`
	Port     int    `envconfig:"WISH_DB_PORT" default:"5432"`
	User     string `envconfig:"WISH_DB_USER"`
	Password string `envconfig:"WISH_DB_PASSWORD"`
	Name     string `envconfig:"WISH_DB_NAME"`
	SSLMode  string `envconfig:"WISH_DB_SSLMODE" default:"require"`

	MaxOpenConns    int           `envconfig:"WISH_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WISH_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WISH_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WISH_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WISH_REDIS_URL" default:"redis://localhost:6379"`
	Password     string        `envconfig:"WISH_REDIS_PASSWORD"`
	DB           int           `envconfig:"WISH_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WISH_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WISH_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WISH_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WISH_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WISH_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig holds the shared secret of the auth backend that issues user tokens.
type JWTConfig struct {
	Secret   string `envconfig:"WISH_JWT_SECRET" required:"true"`
	Issuer   string `envconfig:"WISH_JWT_ISSUER"`
	Audience string `envconfig:"WISH_JWT_AUDIENCE" default:"authenticated"`
}

type CORSConfig struct {
	ExtensionID    string   `envconfig:"WISH_ALLOWED_EXTENSION_ID"`
	AllowedOrigins []string `envconfig:"WISH_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// Origins returns the configured web origins plus the browser extension origin.
func (c CORSConfig) Origins() []string {
	origins := make([]string, 0, len(c.AllowedOrigins)+1)
	for _, origin := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if id := strings.TrimSpace(c.ExtensionID); id != "" {
		origins = append(origins, "chrome-extension://"+id)
	}
	return origins
}

type SyncConfig struct {
	AddDebounce      time.Duration `envconfig:"WISH_SYNC_ADD_DEBOUNCE" default:"1s"`
	DefaultMaxBadges int           `envconfig:"WISH_SYNC_DEFAULT_MAX_BADGES" default:"2"`
	AddRateLimit     int           `envconfig:"WISH_SYNC_ADD_RATE_LIMIT" default:"10"`
	AddRateWindow    time.Duration `envconfig:"WISH_SYNC_ADD_RATE_WINDOW" default:"1m"`
	CacheTTL         time.Duration `envconfig:"WISH_SYNC_CACHE_TTL" default:"720h"`
}

type EnrichmentConfig struct {
	MaxTextLength   int           `envconfig:"WISH_ENRICHMENT_MAX_TEXT_LENGTH" default:"40000"`
	MaxHTMLBytes    int           `envconfig:"WISH_ENRICHMENT_MAX_HTML_BYTES" default:"1000000"`
	HTTPTimeout     time.Duration `envconfig:"WISH_ENRICHMENT_HTTP_TIMEOUT" default:"5s"`
	FetchTimeout    time.Duration `envconfig:"WISH_ENRICHMENT_FETCH_TIMEOUT" default:"30s"`
	UserAgent       string        `envconfig:"WISH_ENRICHMENT_USER_AGENT" default:"Wish-Bot/1.0"`
	DefaultCurrency string        `envconfig:"WISH_ENRICHMENT_DEFAULT_CURRENCY" default:"USD"`
	BreakerTimeout  time.Duration `envconfig:"WISH_ENRICHMENT_BREAKER_TIMEOUT" default:"30s"`

	// LocalWorkers bounds in-process enrichment when Pub/Sub is not configured.
	LocalWorkers int `envconfig:"WISH_ENRICHMENT_LOCAL_WORKERS" default:"4"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"WISH_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EnrichmentTopic        string `envconfig:"WISH_PUBSUB_ENRICHMENT_TOPIC" default:"wish-enrichment-jobs"`
	EnrichmentSubscription string `envconfig:"WISH_PUBSUB_ENRICHMENT_SUBSCRIPTION" default:"wish-enrichment-worker"`
	MaxOutstanding         int    `envconfig:"WISH_PUBSUB_MAX_OUTSTANDING" default:"4"`
}

type PaymentsConfig struct {
	QueryPrice  string `envconfig:"WISH_PAYMENTS_QUERY_PRICE" default:"0.001"`
	Network     string `envconfig:"WISH_PAYMENTS_NETWORK" default:"base-sepolia"`
	PayTo       string `envconfig:"WISH_PAYMENTS_PAY_TO"`
	VerifierURL string `envconfig:"WISH_PAYMENTS_VERIFIER_URL"`

	// WalletURL is used by paying clients, not by the server.
	WalletURL string `envconfig:"WISH_PAYMENTS_WALLET_URL"`
}

// Enabled reports whether the paid query endpoint can accept payments.
func (p PaymentsConfig) Enabled() bool {
	return strings.TrimSpace(p.PayTo) != "" && strings.TrimSpace(p.VerifierURL) != ""
}

// OnrampConfig holds the Coinbase Developer Platform credentials used to
// mint onramp session tokens. APIKeySecret is a PEM encoded EC key; literal
// "\n" sequences are accepted in place of newlines.
type OnrampConfig struct {
	APIKeyID         string        `envconfig:"WISH_ONRAMP_API_KEY_ID"`
	APIKeySecret     string        `envconfig:"WISH_ONRAMP_API_KEY_SECRET"`
	TokenURL         string        `envconfig:"WISH_ONRAMP_TOKEN_URL" default:"https://api.developer.coinbase.com/onramp/v1/token"`
	PayURL           string        `envconfig:"WISH_ONRAMP_PAY_URL" default:"https://pay.coinbase.com/buy/select-asset"`
	Network          string        `envconfig:"WISH_ONRAMP_NETWORK" default:"base"`
	Asset            string        `envconfig:"WISH_ONRAMP_ASSET" default:"ETH"`
	PresetFiatAmount string        `envconfig:"WISH_ONRAMP_PRESET_FIAT_AMOUNT" default:"100"`
	Timeout          time.Duration `envconfig:"WISH_ONRAMP_TIMEOUT" default:"10s"`
	RateWindow       time.Duration `envconfig:"WISH_ONRAMP_RATE_WINDOW" default:"1m"`
	RateLimit        int           `envconfig:"WISH_ONRAMP_RATE_LIMIT" default:"10"`
}

// Enabled reports whether onramp credentials are configured.
func (o OnrampConfig) Enabled() bool {
	return strings.TrimSpace(o.APIKeyID) != "" && strings.TrimSpace(o.APIKeySecret) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

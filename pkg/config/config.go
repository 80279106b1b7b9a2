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
	DB           DBConfig
	Redis        RedisConfig
	Plaid        PlaidConfig
	Webhook      WebhookConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"NESTFIN_APP_ENV" required:"true"`
	Port         string `envconfig:"NESTFIN_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"NESTFIN_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"NESTFIN_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"NESTFIN_DB_DSN"`
	Driver string `envconfig:"NESTFIN_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"NESTFIN_DB_HOST"`
	LegacyPort     int    `envconfig:"NESTFIN_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"NESTFIN_DB_USER"`
	LegacyPassword string `envconfig:"NESTFIN_DB_PASSWORD"`
	LegacyName     string `envconfig:"NESTFIN_DB_NAME"`
	LegacySSLMode  string `envconfig:"NESTFIN_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"NESTFIN_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"NESTFIN_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"NESTFIN_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"NESTFIN_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"NESTFIN_REDIS_URL" required:"true"`
	Address      string        `envconfig:"NESTFIN_REDIS_ADDR"`
	Password     string        `envconfig:"NESTFIN_REDIS_PASSWORD"`
	DB           int           `envconfig:"NESTFIN_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"NESTFIN_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"NESTFIN_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"NESTFIN_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"NESTFIN_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"NESTFIN_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type PlaidConfig struct {
	ClientID string        `envconfig:"NESTFIN_PLAID_CLIENT_ID" required:"true"`
	Secret   string        `envconfig:"NESTFIN_PLAID_SECRET" required:"true"`
	Env      string        `envconfig:"NESTFIN_PLAID_ENV" default:"sandbox"`
	Timeout  time.Duration `envconfig:"NESTFIN_PLAID_TIMEOUT" default:"30s"`
}

// Environment returns the normalized Plaid environment.
func (p PlaidConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(p.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type WebhookConfig struct {
	// DedupWindow bounds how far back the event log is consulted when the
	// upstream redelivers a notification without a delivery id. Sized to
	// cover the sender's observed redelivery interval.
	DedupWindow     time.Duration `envconfig:"NESTFIN_WEBHOOK_DEDUP_WINDOW" default:"5m"`
	DedupTTL        time.Duration `envconfig:"NESTFIN_WEBHOOK_DEDUP_TTL" default:"24h"`
	UpsertBatchSize int           `envconfig:"NESTFIN_WEBHOOK_UPSERT_BATCH_SIZE" default:"500"`

	InitialLookbackDays    int `envconfig:"NESTFIN_SYNC_INITIAL_LOOKBACK_DAYS" default:"90"`
	HistoricalLookbackDays int `envconfig:"NESTFIN_SYNC_HISTORICAL_LOOKBACK_DAYS" default:"730"`
	DefaultLookbackDays    int `envconfig:"NESTFIN_SYNC_DEFAULT_LOOKBACK_DAYS" default:"30"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"NESTFIN_AUTO_MIGRATE" default:"false"`
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

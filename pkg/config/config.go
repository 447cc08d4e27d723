package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "CARDDECK"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "CARDDECK_DB_DSN"
	EnvDBHost = "CARDDECK_DB_HOST"
	EnvDBUser = "CARDDECK_DB_USER"
	EnvDBName = "CARDDECK_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	PayMongo     PayMongoConfig
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
	Env          string `envconfig:"CARDDECK_APP_ENV" required:"true"`
	Port         string `envconfig:"CARDDECK_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"CARDDECK_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"CARDDECK_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"CARDDECK_DB_DSN"`
	Driver string `envconfig:"CARDDECK_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CARDDECK_DB_HOST"`
	LegacyPort     int    `envconfig:"CARDDECK_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CARDDECK_DB_USER"`
	LegacyPassword string `envconfig:"CARDDECK_DB_PASSWORD"`
	LegacyName     string `envconfig:"CARDDECK_DB_NAME"`
	LegacySSLMode  string `envconfig:"CARDDECK_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CARDDECK_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CARDDECK_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CARDDECK_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CARDDECK_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"CARDDECK_REDIS_URL" required:"true"`
	Address      string        `envconfig:"CARDDECK_REDIS_ADDR"`
	Password     string        `envconfig:"CARDDECK_REDIS_PASSWORD"`
	DB           int           `envconfig:"CARDDECK_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CARDDECK_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CARDDECK_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CARDDECK_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CARDDECK_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CARDDECK_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"CARDDECK_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CARDDECK_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CARDDECK_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PayMongoConfig struct {
	SecretKey     string        `envconfig:"CARDDECK_PAYMONGO_SECRET_KEY"`
	PublicKey     string        `envconfig:"CARDDECK_PAYMONGO_PUBLIC_KEY"`
	WebhookSecret string        `envconfig:"CARDDECK_PAYMONGO_WEBHOOK_SECRET"`
	BaseURL       string        `envconfig:"CARDDECK_PAYMONGO_BASE_URL" default:"https://api.paymongo.com/v1"`
	Timeout       time.Duration `envconfig:"CARDDECK_PAYMONGO_TIMEOUT" default:"30s"`

	// How long a delivered webhook event id is remembered for replay
	// suppression. PayMongo retries for up to 24 hours.
	WebhookEventTTL time.Duration `envconfig:"CARDDECK_PAYMONGO_WEBHOOK_EVENT_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CARDDECK_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CARDDECK_AUTO_MIGRATE" default:"false"`
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

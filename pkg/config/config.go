package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix namespaces every environment variable the service reads.
	EnvPrefix = "WESER"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "WESER_DB_DSN"
	EnvDBHost = "WESER_DB_HOST"
	EnvDBUser = "WESER_DB_USER"
	EnvDBName = "WESER_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Checkout      CheckoutConfig
	FeatureFlags  FeatureFlagsConfig
	CORS          CORSConfig
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
	Env          string `envconfig:"WESER_APP_ENV" required:"true"`
	Port         string `envconfig:"WESER_APP_PORT" default:"5000"`
	LogLevel     string `envconfig:"WESER_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"WESER_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN string `envconfig:"WESER_DB_DSN"`

	LegacyHost     string `envconfig:"WESER_DB_HOST"`
	LegacyPort     int    `envconfig:"WESER_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"WESER_DB_USER"`
	LegacyPassword string `envconfig:"WESER_DB_PASSWORD"`
	LegacyName     string `envconfig:"WESER_DB_NAME"`
	LegacySSLMode  string `envconfig:"WESER_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"WESER_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"WESER_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"WESER_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"WESER_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"WESER_REDIS_URL"`
	Address      string        `envconfig:"WESER_REDIS_ADDR"`
	Password     string        `envconfig:"WESER_REDIS_PASSWORD"`
	DB           int           `envconfig:"WESER_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"WESER_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"WESER_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"WESER_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"WESER_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"WESER_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"WESER_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"WESER_JWT_ISSUER" default:"weser"`
	ExpirationMinutes int    `envconfig:"WESER_JWT_EXPIRATION_MINUTES" default:"1440"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"WESER_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"WESER_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"WESER_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"WESER_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"WESER_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"WESER_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"WESER_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"WESER_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"WESER_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"WESER_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"WESER_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

type CheckoutConfig struct {
	// ConflictRetries bounds how many times a checkout attempt is
	// re-run after a guarded stock decrement loses a race.
	ConflictRetries int           `envconfig:"WESER_CHECKOUT_CONFLICT_RETRIES" default:"1"`
	IdempotencyTTL  time.Duration `envconfig:"WESER_CHECKOUT_IDEMPOTENCY_TTL" default:"168h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"WESER_AUTO_MIGRATE" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"WESER_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
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
	for _, envVar := range legacyDBEnvVars {
		if legacyValues[envVar] == "" {
			missing = append(missing, envVar)
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

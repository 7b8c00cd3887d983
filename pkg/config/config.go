package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// EnvPrefix scopes every environment variable consumed by the platform.
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	Razorpay     RazorpayConfig
	Scheduler    SchedulerConfig
	Mail         MailConfig
	Sweep        SweepConfig
	FeatureFlags FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BILLFORGE_APP_ENV" required:"true"`
	Port         string `envconfig:"BILLFORGE_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BILLFORGE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BILLFORGE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BILLFORGE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BILLFORGE_DB_DSN" required:"true"`
	Driver string `envconfig:"BILLFORGE_DB_DRIVER" default:"postgres"`

	MaxOpenConns    int           `envconfig:"BILLFORGE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BILLFORGE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BILLFORGE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BILLFORGE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BILLFORGE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"BILLFORGE_REDIS_ADDR"`
	Password     string        `envconfig:"BILLFORGE_REDIS_PASSWORD"`
	DB           int           `envconfig:"BILLFORGE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BILLFORGE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BILLFORGE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BILLFORGE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BILLFORGE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BILLFORGE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BILLFORGE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BILLFORGE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BILLFORGE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BILLFORGE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BILLFORGE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BILLFORGE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BILLFORGE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BILLFORGE_ARGON_KEY_LEN" default:"32"`
}

type RazorpayConfig struct {
	KeyID         string        `envconfig:"BILLFORGE_RAZORPAY_KEY_ID" required:"true"`
	KeySecret     string        `envconfig:"BILLFORGE_RAZORPAY_KEY_SECRET" required:"true"`
	WebhookSecret string        `envconfig:"BILLFORGE_RAZORPAY_WEBHOOK_SECRET" required:"true"`
	Timeout       time.Duration `envconfig:"BILLFORGE_RAZORPAY_TIMEOUT" default:"15s"`
}

type SchedulerConfig struct {
	Token string `envconfig:"BILLFORGE_SCHEDULER_TOKEN" required:"true"`
}

type MailConfig struct {
	PostmarkServerToken  string `envconfig:"BILLFORGE_MAIL_POSTMARK_SERVER_TOKEN"`
	PostmarkAccountToken string `envconfig:"BILLFORGE_MAIL_POSTMARK_ACCOUNT_TOKEN"`
	FromEmail            string `envconfig:"BILLFORGE_MAIL_FROM" default:"billing@billforge.app"`
}

type SweepConfig struct {
	Interval        time.Duration `envconfig:"BILLFORGE_SWEEP_INTERVAL" default:"24h"`
	GraceDays       int           `envconfig:"BILLFORGE_SWEEP_GRACE_DAYS" default:"5"`
	RenewalDays     int           `envconfig:"BILLFORGE_SWEEP_RENEWAL_DAYS" default:"30"`
	BatchLimit      int           `envconfig:"BILLFORGE_SWEEP_BATCH_LIMIT" default:"500"`
	WebhookEventTTL time.Duration `envconfig:"BILLFORGE_WEBHOOK_EVENT_TTL" default:"720h"`
	DefaultTimezone string        `envconfig:"BILLFORGE_DEFAULT_TIMEZONE" default:"Asia/Kolkata"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"BILLFORGE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"BILLFORGE_AUTO_MIGRATE" default:"false"`
}

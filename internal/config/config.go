package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const PROD_STRING = "prod"

// Hold policies decide which booking states keep slots exclusive.
const (
	HoldPolicyPending   = "pending"
	HoldPolicyConfirmed = "confirmed"
)

// Config holds all application configuration loaded from environment.
type Config struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	ProdOrigins string `envconfig:"PROD_ORIGINS"`
	HTTPAddr    string `envconfig:"HTTP_ADDR" default:":8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DBDSN         string `envconfig:"DB_DSN" required:"true"`
	RunMigrations bool   `envconfig:"RUN_MIGRATIONS" default:"true"`

	RedisURL       string `envconfig:"REDIS_URL"`
	RabbitMQURL    string `envconfig:"RABBITMQ_URL"`
	EventsExchange string `envconfig:"EVENTS_EXCHANGE" default:"ground-booking.events"`

	JWTSecret         string        `envconfig:"JWT_SECRET" required:"true"`
	JWTAccessTokenTTL time.Duration `envconfig:"JWT_ACCESS_TOKEN_TTL" default:"15m"`
	BcryptCost        int           `envconfig:"BCRYPT_COST" default:"12"`

	OTPTTL            time.Duration `envconfig:"OTP_TTL" default:"5m"`
	OTPMaxHold        time.Duration `envconfig:"OTP_MAX_HOLD" default:"30m"`
	OTPMaxAttempts    int           `envconfig:"OTP_MAX_ATTEMPTS" default:"5"`
	OTPRateLimitRPS   float64       `envconfig:"OTP_RATE_LIMIT_RPS" default:"0.5"`
	OTPRateLimitBurst int           `envconfig:"OTP_RATE_LIMIT_BURST" default:"5"`
	ReclaimInterval   time.Duration `envconfig:"RECLAIM_INTERVAL" default:"1m"`
	HoldPolicy        string        `envconfig:"HOLD_POLICY" default:"pending"`
	GroundTimezone    string        `envconfig:"GROUND_TIMEZONE" default:"Asia/Thimphu"`

	BootstrapAdminEmail    string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
	BootstrapAdminPassword string `envconfig:"BOOTSTRAP_ADMIN_PASSWORD"`

	OTLPEndpoint string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	// Derived values, filled by Load.
	IsProduction bool           `ignored:"true"`
	Location     *time.Location `ignored:"true"`
}

// Load loads configuration from .env (optional) and environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finalize() error {
	c.IsProduction = c.AppEnv == PROD_STRING

	switch c.HoldPolicy {
	case HoldPolicyPending, HoldPolicyConfirmed:
	default:
		return fmt.Errorf("invalid HOLD_POLICY %q: want %q or %q", c.HoldPolicy, HoldPolicyPending, HoldPolicyConfirmed)
	}

	if c.OTPTTL <= 0 {
		return fmt.Errorf("OTP_TTL must be positive")
	}
	if c.OTPMaxHold < c.OTPTTL {
		return fmt.Errorf("OTP_MAX_HOLD must not be shorter than OTP_TTL")
	}
	if c.OTPMaxAttempts < 1 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}
	if c.ReclaimInterval <= 0 {
		return fmt.Errorf("RECLAIM_INTERVAL must be positive")
	}

	loc, err := time.LoadLocation(c.GroundTimezone)
	if err != nil {
		return fmt.Errorf("invalid GROUND_TIMEZONE: %w", err)
	}
	c.Location = loc

	return nil
}

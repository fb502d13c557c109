// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Orphan policies applied when the first verification mail cannot be sent.
const (
	OrphanKeep   = "keep"
	OrphanDelete = "delete"
)

// Config is the full server configuration.
type Config struct {
	Env      string `env:"APP_ENV"  envDefault:"production"`
	AppName  string `env:"APP_NAME" envDefault:"Alebaz"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	GRPCAddr string `env:"GRPC_ADDR" envDefault:":9090"`

	DatabaseDSN string `env:"DATABASE_DSN,required"`

	JWTKey    string        `env:"JWT_KEY,required"`
	AccessTTL time.Duration `env:"ACCESS_TTL" envDefault:"720h"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC"   envDefault:"alebaz.events"`

	SMTP SMTP `envPrefix:"SMTP_"`

	MailFrom    string        `env:"MAIL_FROM"    envDefault:"no-reply@alebaz.local"`
	MailTimeout time.Duration `env:"MAIL_TIMEOUT" envDefault:"10s"`

	UploadDir string `env:"UPLOAD_DIR" envDefault:"uploads"`

	OTPTTL        time.Duration `env:"OTP_TTL"         envDefault:"10m"`
	OTPCooldown   time.Duration `env:"OTP_COOLDOWN"    envDefault:"10s"`
	OTPMaxResends int           `env:"OTP_MAX_RESENDS" envDefault:"5"`

	OrphanPolicy string `env:"ORPHAN_POLICY" envDefault:"keep"`

	AllowOrigins []string `env:"ALLOW_ORIGINS" envSeparator:"," envDefault:"*"`
}

// SMTP holds outgoing mail server settings. An empty Host logs codes instead.
type SMTP struct {
	Host     string `env:"HOST"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
}

// Dev reports whether the server runs in development mode.
func (c *Config) Dev() bool { return c.Env == "development" || c.Env == "dev" }

// Load reads an optional dotenv file, then parses the environment.
// A missing dotenv file is not an error.
func Load(dotenv string) (*Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}
	var c Config
	if err := env.Parse(&c); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	switch c.OrphanPolicy {
	case OrphanKeep, OrphanDelete:
	default:
		return fmt.Errorf("ORPHAN_POLICY must be %q or %q, got %q", OrphanKeep, OrphanDelete, c.OrphanPolicy)
	}
	if len(c.JWTKey) < 16 {
		return errors.New("JWT_KEY must be at least 16 bytes")
	}
	if c.AccessTTL <= 0 {
		return errors.New("ACCESS_TTL must be positive")
	}
	if c.OTPMaxResends < 0 {
		return errors.New("OTP_MAX_RESENDS must not be negative")
	}
	return nil
}

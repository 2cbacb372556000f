package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is loaded from the environment. JWT_SECRET_KEY is the only value
// without a usable default.
type Config struct {
	Env       string `env:"ENV" envDefault:"dev"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	Port                int           `env:"PORT" envDefault:"8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD" envDefault:"10s"`

	DatabaseFile string `env:"DATABASE_FILE" envDefault:"deskgate.db"`

	// JWTSecretKey signs access tokens. Fixed symmetric key; rotating it
	// invalidates every outstanding token.
	JWTSecretKey string        `env:"JWT_SECRET_KEY"`
	TokenIssuer  string        `env:"TOKEN_ISSUER" envDefault:"deskgate"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"1h"`

	// PasswordPepper is mixed into every password hash. Optional but
	// recommended; losing it invalidates all stored hashes.
	PasswordPepper string `env:"PASSWORD_PEPPER"`

	// CredentialKey encrypts stored RDP passwords, hex-encoded 32 bytes.
	// Empty derives a key from JWT_SECRET_KEY.
	CredentialKey string `env:"CREDENTIAL_KEY"`

	FileRoot string `env:"FILE_ROOT" envDefault:"./files"`

	MonitorInterval      time.Duration `env:"MONITOR_INTERVAL" envDefault:"30s"`
	HousekeepingInterval time.Duration `env:"HOUSEKEEPING_INTERVAL" envDefault:"1h"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.JWTSecretKey == "" {
		return Config{}, errors.New("JWT_SECRET_KEY must be set")
	}
	return cfg, nil
}

package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	Env         string `env:"ENV" envDefault:"development"`
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`

	OTPCooldown    time.Duration `env:"OTP_COOLDOWN" envDefault:"1m"`
	OTPTTL         time.Duration `env:"OTP_TTL" envDefault:"5m"`
	OTPMaxAttempts int           `env:"OTP_MAX_ATTEMPTS" envDefault:"3"`

	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"30m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"720h"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"720h"`

	SMSProviderURL string `env:"SMS_PROVIDER_URL"`
	SMSAPIKey      string `env:"SMS_API_KEY"`
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// IsDev reports whether the server runs in local development. Controls the
// session cookie Secure flag and the SMS sender choice.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

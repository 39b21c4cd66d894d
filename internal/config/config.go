package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

// Config aggregates all service configuration parsed from environment variables.
type Config struct {
	Server ServerConfig
	Mongo  MongoConfig
	Token  TokenConfig
	OTP    OTPConfig
	App    AppConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR"             envDefault:":8080"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"      envDefault:"mongodb://localhost:27017"`
	Database string `env:"MONGO_DATABASE" envDefault:"identity"`
}

// TokenConfig holds signing key material paths and token lifetimes.
type TokenConfig struct {
	Issuer          string        `env:"JWT_ISSUER"            envDefault:"identity-api"`
	Audience        string        `env:"JWT_AUDIENCE"          envDefault:"identity-clients"`
	AccessTokenTTL  time.Duration `env:"JWT_ACCESS_TTL"        envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"JWT_REFRESH_TTL"       envDefault:"720h"`
	OneTimeTokenTTL time.Duration `env:"ONE_TIME_TOKEN_TTL"    envDefault:"30m"`
	PrivateKeyPath  string        `env:"JWT_PRIVATE_KEY_PATH"`
	PublicKeyPath   string        `env:"JWT_PUBLIC_KEY_PATH"`
	SecretPepper    string        `env:"TOKEN_SECRET_PEPPER"`
}

// OTPConfig holds email verification code settings.
type OTPConfig struct {
	TTL            time.Duration `env:"OTP_TTL"             envDefault:"5m"`
	ResendCooldown time.Duration `env:"OTP_RESEND_COOLDOWN" envDefault:"1m"`
}

// AppConfig holds frontend URLs embedded into outgoing emails.
type AppConfig struct {
	VerifyEmailURL   string `env:"APP_VERIFY_EMAIL_URL"   envDefault:"http://localhost:3000/verify-email"`
	PasswordResetURL string `env:"APP_PASSWORD_RESET_URL" envDefault:"http://localhost:3000/reset-password"`
}

// Load parses the service configuration from environment variables.
func Load(logger *zerolog.Logger) *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to validate configuration")
	}

	return &cfg
}

// validate checks that configuration without a usable default is present.
func (c *Config) validate() error {
	if c.Token.PrivateKeyPath == "" {
		return fmt.Errorf("missing JWT_PRIVATE_KEY_PATH environment variable")
	}
	if c.Token.PublicKeyPath == "" {
		return fmt.Errorf("missing JWT_PUBLIC_KEY_PATH environment variable")
	}
	if c.Token.SecretPepper == "" {
		return fmt.Errorf("missing TOKEN_SECRET_PEPPER environment variable")
	}

	return nil
}

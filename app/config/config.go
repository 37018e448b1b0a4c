// Package config loads process-wide configuration from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	// this will automatically load your .env file:
	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	FrontendURL string `env:"FRONTEND_URL" envDefault:"http://localhost:3000"`

	DB     DBConfig
	Stripe StripeConfig
	OpenAI OpenAIConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Alerts AlertConfig
}

type DBConfig struct {
	// Full connection string wins when set; otherwise the DSN is
	// assembled from the individual POSTGRES_* parts.
	URL      string `env:"DATABASE_URL"`
	Username string `env:"POSTGRES_USER" envDefault:"stoicforge"`
	Password string `env:"POSTGRES_PWD"`
	Host     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port     string `env:"POSTGRES_PORT" envDefault:"5432"`
	Name     string `env:"POSTGRES_DB" envDefault:"stoicforge"`
}

type StripeConfig struct {
	SecretKey       string `env:"STRIPE_SECRET_KEY"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	PriceIDBeginner string `env:"STRIPE_PRICE_ID_BEGINNER"`
	PriceIDPro      string `env:"STRIPE_PRICE_ID_PRO"`
}

type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY"`
	BaseURL string `env:"OPENAI_BASE_URL" envDefault:"https://api.openai.com/v1"`
	Model   string `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type AuthConfig struct {
	Issuer   string `env:"AUTH_ISSUER"`
	Audience string `env:"AUTH_AUDIENCE"`
}

type AlertConfig struct {
	QueueURL string `env:"ALERT_QUEUE_URL"`
}

// Load parses the environment into a Config. Call it once at startup and
// pass the result down; handlers never read the environment themselves.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// DSN returns the Postgres connection string.
func (c DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
	)
}

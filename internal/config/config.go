package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Session  SessionConfig
	Push     PushConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string        `env:"SERVER_PORT" envDefault:"8080"`
	Environment    string        `env:"ENVIRONMENT" envDefault:"development"`
	ReadTimeout    time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout   time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	AllowOrigins   string        `env:"CORS_ALLOW_ORIGINS" envDefault:"http://localhost:3000"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

type DatabaseConfig struct {
	Host           string        `env:"DB_HOST" envDefault:"localhost"`
	Port           string        `env:"DB_PORT" envDefault:"5432"`
	User           string        `env:"DB_USER" envDefault:"notify"`
	Password       string        `env:"DB_PASSWORD" envDefault:"notify"`
	DBName         string        `env:"DB_NAME" envDefault:"notifydb"`
	SSLMode        string        `env:"DB_SSLMODE" envDefault:"disable"`
	MigrateOnStart bool          `env:"MIGRATE_ON_START" envDefault:"true"`
	QueryTimeout   time.Duration `env:"DB_QUERY_TIMEOUT" envDefault:"5s"`
}

type RedisConfig struct {
	Host     string `env:"REDIS_HOST" envDefault:"localhost"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

type SessionConfig struct {
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"session_token"`
}

type PushConfig struct {
	Enabled         bool          `env:"PUSH_ENABLED" envDefault:"true"`
	Subscriber      string        `env:"VAPID_SUBSCRIBER"`
	VAPIDPublicKey  string        `env:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string        `env:"VAPID_PRIVATE_KEY"`
	TTL             time.Duration `env:"PUSH_TTL" envDefault:"24h"`
	Urgency         string        `env:"PUSH_URGENCY" envDefault:"normal"`
	Timeout         time.Duration `env:"PUSH_TIMEOUT" envDefault:"10s"`
	Concurrency     int           `env:"PUSH_CONCURRENCY" envDefault:"8"`
	PruneGone       bool          `env:"PUSH_PRUNE_GONE" envDefault:"true"`
}

type LogConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	// .env is optional in production
	_ = godotenv.Load()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that have no usable default
func (c *Config) Validate() error {
	if c.Push.Concurrency < 1 {
		return errors.New("PUSH_CONCURRENCY must be at least 1")
	}
	if c.Push.Timeout <= 0 {
		return errors.New("PUSH_TIMEOUT must be positive")
	}
	if c.Database.QueryTimeout <= 0 {
		return errors.New("DB_QUERY_TIMEOUT must be positive")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT must be positive")
	}
	if c.Session.CookieName == "" {
		return errors.New("SESSION_COOKIE_NAME must not be empty")
	}

	if !c.Push.Enabled {
		return nil
	}
	if c.Push.VAPIDPublicKey == "" || c.Push.VAPIDPrivateKey == "" {
		return errors.New("missing VAPID_PUBLIC_KEY or VAPID_PRIVATE_KEY environment variable")
	}
	if c.Push.Subscriber == "" {
		return errors.New("missing VAPID_SUBSCRIBER environment variable")
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration.
type Config struct {
	Env      string `env:"APP_ENV"   envDefault:"development"`
	Port     string `env:"PORT"      envDefault:"1337"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	PageAccessToken string `env:"PAGE_ACCESS_TOKEN,required,notEmpty"`
	VerifyToken     string `env:"VERIFY_TOKEN,required,notEmpty"`
	AppSecret       string `env:"APP_SECRET"`

	GraphAPIURL    string        `env:"GRAPH_API_URL"    envDefault:"https://graph.facebook.com/v8.0"`
	SendTimeout    time.Duration `env:"SEND_TIMEOUT"     envDefault:"10s"`
	SendMaxRetries uint          `env:"SEND_MAX_RETRIES" envDefault:"3"`

	DispatchWorkers   int `env:"DISPATCH_WORKERS"    envDefault:"4"`
	DispatchQueueSize int `env:"DISPATCH_QUEUE_SIZE" envDefault:"256"`

	CatalogPath string `env:"CATALOG_PATH"`

	RedisURL    string        `env:"REDIS_URL"`
	RedisAddr   string        `env:"REDIS_ADDR"`
	DedupeTTL   time.Duration `env:"DEDUPE_TTL" envDefault:"24h"`
	PostgresDSN string        `env:"POSTGRES_DSN"`

	APIKey string `env:"API_KEY"`
}

var (
	cfg     *Config
	loadErr error
	once    sync.Once
)

// LoadConfig loads the configuration once per process.
func LoadConfig() (*Config, error) {
	once.Do(func() {
		// .env is optional; try the usual places relative to the binary.
		for _, path := range []string{".env", "../.env", "../../.env"} {
			if err := godotenv.Load(path); err == nil {
				break
			}
		}
		cfg, loadErr = Load()
	})
	return cfg, loadErr
}

// Load parses the environment into a Config and validates it.
func Load() (*Config, error) {
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
	if c.SendTimeout <= 0 {
		return fmt.Errorf("SEND_TIMEOUT must be positive, got %s", c.SendTimeout)
	}
	if c.DispatchWorkers <= 0 {
		return fmt.Errorf("DISPATCH_WORKERS must be positive, got %d", c.DispatchWorkers)
	}
	if c.DispatchQueueSize <= 0 {
		return fmt.Errorf("DISPATCH_QUEUE_SIZE must be positive, got %d", c.DispatchQueueSize)
	}
	if c.DedupeTTL <= 0 {
		return fmt.Errorf("DEDUPE_TTL must be positive, got %s", c.DedupeTTL)
	}
	return nil
}

// RedisTarget returns REDIS_URL, or REDIS_ADDR when no URL is set. Empty
// means Redis is not used.
func (c *Config) RedisTarget() string {
	if c.RedisURL != "" {
		return c.RedisURL
	}
	return c.RedisAddr
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return ":" + c.Port
}

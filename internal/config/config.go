package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config represents the application configuration.
type Config struct {
	App     AppConfig     `envPrefix:"APP_"`
	Engine  EngineConfig  `envPrefix:"ENGINE_"`
	Pricing PricingConfig `envPrefix:"PRICE_"`
	Auth    AuthConfig    `envPrefix:"AUTH_"`
}

// AppConfig represents the server configuration.
type AppConfig struct {
	Environment  string `env:"ENVIRONMENT" envDefault:"development"`
	Port         int    `env:"PORT" envDefault:"8080"`
	Debug        bool   `env:"DEBUG" envDefault:"false"`
	DatabasePath string `env:"DATABASE_PATH" envDefault:"paper-exchange.db"`
}

// EngineConfig tunes the simulated execution engine.
type EngineConfig struct {
	MinSettleLatency time.Duration `env:"MIN_SETTLE_LATENCY" envDefault:"1s"`
	MaxSettleLatency time.Duration `env:"MAX_SETTLE_LATENCY" envDefault:"3s"`
	ReevalInterval   time.Duration `env:"REEVAL_INTERVAL" envDefault:"5s"`
	WalletLatency    time.Duration `env:"WALLET_LATENCY" envDefault:"500ms"`
	QuoteCurrency    string        `env:"QUOTE_CURRENCY" envDefault:"USDT"`
	StartingBalance  float64       `env:"STARTING_BALANCE" envDefault:"10000"`
}

// PricingConfig tunes the price lookup pipeline. An empty SourceURL
// selects the simulated random-walk source.
type PricingConfig struct {
	SourceURL          string        `env:"SOURCE_URL" envDefault:""`
	CacheTTL           time.Duration `env:"CACHE_TTL" envDefault:"30s"`
	MinRequestInterval time.Duration `env:"MIN_REQUEST_INTERVAL" envDefault:"1s"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"5s"`
}

// AuthConfig holds the token signing settings.
type AuthConfig struct {
	JWTSecret string `env:"JWT_SECRET" envDefault:"paper-exchange-secret-key"`
}

// Load loads the configuration from the environment.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

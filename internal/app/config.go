package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/beautivra/internal/domain/pricing"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOP_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL URL of the order ledger (SHOP_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Mongo       MongoConfig
	Redis       RedisConfig
	Stripe      StripeConfig
	Pricing     PricingConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// MongoConfig locates the catalog database.
type MongoConfig struct {
	URL      string `usage:"MongoDB URL of the catalog (SHOP_MONGO_URL or MONGO_URL)"`
	Database string `default:"beautivra" usage:"Catalog database name"`
}

// RedisConfig enables the product cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `default:"" usage:"Redis address for the product cache"`
	Password string `default:"" usage:"Redis password"`
	DB       int    `default:"0" usage:"Redis database"`
}

// StripeConfig configures the payment provider.
type StripeConfig struct {
	APIKey        string        `usage:"Stripe secret key" flag:"stripe-api-key"`
	WebhookSecret string        `usage:"Stripe webhook signing secret" flag:"stripe-webhook-secret"`
	Currency      string        `default:"cad" usage:"ISO 4217 currency of checkout sessions"`
	Timeout       time.Duration `default:"10s" usage:"Timeout of a single Stripe call"`
	BaseURL       string        `default:"" usage:"Override the Stripe API endpoint (stripe-mock)"`
}

// PricingConfig holds decimal amounts as strings so they never pass through
// float64.
type PricingConfig struct {
	FreeShippingThreshold string `default:"75.00" usage:"Subtotal above which shipping is free"`
	FlatRate              string `default:"9.95" usage:"Flat shipping rate"`
	TaxRate               string `default:"0.13" usage:"Tax rate applied to goods and shipping"`
}

// Rates parses the configured amounts.
func (c PricingConfig) Rates() (pricing.Rates, error) {
	var (
		r   pricing.Rates
		err error
	)
	if r.FreeShippingThreshold, err = decimal.NewFromString(c.FreeShippingThreshold); err != nil {
		return r, errors.Wrap(err, "free shipping threshold")
	}
	if r.FlatRate, err = decimal.NewFromString(c.FlatRate); err != nil {
		return r, errors.Wrap(err, "flat rate")
	}
	if r.TaxRate, err = decimal.NewFromString(c.TaxRate); err != nil {
		return r, errors.Wrap(err, "tax rate")
	}
	if err := r.Validate(); err != nil {
		return r, err
	}
	return r, nil
}

// KafkaConfig enables order.paid events. No brokers disables publishing.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers"`
	Topic   string   `default:"beautivra.orders" usage:"Topic for order events"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

const defaultAddr = "0.0.0.0:8080"

// LoadConfig loads configuration from command-line flags, environment
// variables and YAML config files, then applies platform defaults.
func LoadConfig() (*Config, error) {
	cfg, err := load(false)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvConfig is LoadConfig without flag parsing and validation, for tools
// that own their command line and need only some of the backends.
func LoadEnvConfig() (*Config, error) {
	return load(true)
}

func load(skipFlags bool) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOP",
		SkipFlags: skipFlags,
		Files:     []string{"config.yaml", "/etc/beautivra/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()
	return &cfg, nil
}

// Validate reports missing required settings.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set SHOP_DATABASE_URL or DATABASE_URL")
	case c.Mongo.URL == "":
		return errors.New("mongo URL is required: set SHOP_MONGO_URL or MONGO_URL")
	case c.Stripe.APIKey == "":
		return errors.New("stripe API key is required: set SHOP_STRIPE_API_KEY")
	}
	if _, err := c.Pricing.Rates(); err != nil {
		return errors.Wrap(err, "pricing")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided variables (DATABASE_URL,
// MONGO_URL, PORT) onto the SHOP_ configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Mongo.URL == "" {
		c.Mongo.URL = os.Getenv("MONGO_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Package config loads the storefront core configuration with precedence
// defaults -> YAML file -> environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RetryConfig bounds the exponential backoff applied to transient failures.
type RetryConfig struct {
	MaxTries   int           `yaml:"maxTries"`
	MaxElapsed time.Duration `yaml:"maxElapsed"`
}

// APIConfig configures the commerce API client.
type APIConfig struct {
	BaseURL           string        `yaml:"baseURL"`
	Token             string        `yaml:"token"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond"`
	Retry             RetryConfig   `yaml:"retry"`
}

// CacheConfig configures the durable local cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// CheckoutConfig carries checkout-funnel tunables.
type CheckoutConfig struct {
	// PayOnDeliveryMethodID identifies the payment method that requires
	// no settlement step.
	PayOnDeliveryMethodID int64 `yaml:"payOnDeliveryMethodID"`
}

// TelemetryConfig configures OTLP metric export.
type TelemetryConfig struct {
	Enabled      bool   `yaml:"enabled"`
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	OTLPInsecure bool   `yaml:"otlpInsecure"`
}

// Config is the unified storefront core configuration.
type Config struct {
	Environment string          `yaml:"environment"`
	API         APIConfig       `yaml:"api"`
	Cache       CacheConfig     `yaml:"cache"`
	Checkout    CheckoutConfig  `yaml:"checkout"`
	Telemetry   TelemetryConfig `yaml:"telemetry"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment: "production",
		API: APIConfig{
			BaseURL:           "https://api.example-market.com",
			Timeout:           10 * time.Second,
			RequestsPerSecond: 8,
			Retry: RetryConfig{
				MaxTries:   4,
				MaxElapsed: 30 * time.Second,
			},
		},
		Cache: CacheConfig{
			Dir: defaultCacheDir(),
		},
		Checkout: CheckoutConfig{
			PayOnDeliveryMethodID: 1,
		},
		Telemetry: TelemetryConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4318",
			OTLPInsecure: true,
		},
	}
}

// Load builds the configuration: defaults, then the YAML file at path if
// present, then STOREFRONT_* environment overrides. loadedFromFile is
// false when the file does not exist.
func Load(path string) (Config, bool, error) {
	cfg := Default()

	loadedFromFile := false
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, false, fmt.Errorf("unmarshal config %s: %w", path, err)
			}
			loadedFromFile = true
		case os.IsNotExist(err):
		default:
			return Config{}, false, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg.loadEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, false, fmt.Errorf("validate config: %w", err)
	}
	return cfg, loadedFromFile, nil
}

func (c *Config) loadEnv() {
	if v := os.Getenv("STOREFRONT_ENV"); v != "" {
		c.Environment = strings.ToLower(strings.TrimSpace(v))
	}
	if v := os.Getenv("STOREFRONT_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("STOREFRONT_API_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("STOREFRONT_API_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.API.Timeout = d
		}
	}
	if v := os.Getenv("STOREFRONT_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("STOREFRONT_COD_METHOD_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Checkout.PayOnDeliveryMethodID = id
		}
	}
	if v := os.Getenv("STOREFRONT_OTLP_ENDPOINT"); v != "" {
		c.Telemetry.OTLPEndpoint = v
	}
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.baseURL is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}
	if c.API.Retry.MaxTries < 1 {
		return fmt.Errorf("api.retry.maxTries must be at least 1")
	}
	if c.API.RequestsPerSecond <= 0 {
		return fmt.Errorf("api.requestsPerSecond must be positive")
	}
	return nil
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return ".storefront-cache"
	}
	return base + string(os.PathSeparator) + "storefront"
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	Server  ServerConfig
	Gateway GatewayConfig
}

type ServerConfig struct {
	Port        string
	DatabaseURL string
	RedisURL    string
}

// GatewayConfig configures the payment gateway integration. There are
// deliberately no defaults for the merchant credentials: an instance
// started without them must refuse to boot rather than sign requests
// with a stale or test secret.
type GatewayConfig struct {
	BaseURL    string
	MerchantID string
	SaltKey    string
	SaltIndex  string

	// CallbackURL is the absolute URL the gateway posts webhooks to.
	// CallbackPath is the path component the webhook checksum is
	// computed over.
	CallbackURL  string
	CallbackPath string

	// RedirectBaseURL is where the gateway sends the user's browser
	// after checkout. Order id, plan and cycle are appended as query
	// parameters per order.
	RedirectBaseURL string

	Timeout time.Duration
}

// Load reads configuration from the environment. It does not validate;
// call Validate before using the gateway section.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        getEnv("PORT", "8080"),
			DatabaseURL: os.Getenv("DATABASE_URL"),
			RedisURL:    os.Getenv("REDIS_URL"),
		},
		Gateway: GatewayConfig{
			BaseURL:         os.Getenv("GATEWAY_BASE_URL"),
			MerchantID:      os.Getenv("GATEWAY_MERCHANT_ID"),
			SaltKey:         os.Getenv("GATEWAY_SALT_KEY"),
			SaltIndex:       getEnv("GATEWAY_SALT_INDEX", "1"),
			CallbackURL:     os.Getenv("GATEWAY_CALLBACK_URL"),
			CallbackPath:    getEnv("GATEWAY_CALLBACK_PATH", "/api/payments/callback"),
			RedirectBaseURL: os.Getenv("GATEWAY_REDIRECT_BASE_URL"),
			Timeout:         getEnvDuration("GATEWAY_TIMEOUT_SECONDS", 15*time.Second),
		},
	}
}

// Validate fails fast when the gateway configuration is incomplete.
func (g GatewayConfig) Validate() error {
	missing := []string{}
	if g.BaseURL == "" {
		missing = append(missing, "GATEWAY_BASE_URL")
	}
	if g.MerchantID == "" {
		missing = append(missing, "GATEWAY_MERCHANT_ID")
	}
	if g.SaltKey == "" {
		missing = append(missing, "GATEWAY_SALT_KEY")
	}
	if g.CallbackURL == "" {
		missing = append(missing, "GATEWAY_CALLBACK_URL")
	}
	if g.RedirectBaseURL == "" {
		missing = append(missing, "GATEWAY_REDIRECT_BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("gateway configuration incomplete, missing: %v", missing)
	}
	if g.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %s", g.Timeout)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

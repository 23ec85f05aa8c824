// Package config provides application configuration through environment variables.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/allisson/go-env"
	"github.com/joho/godotenv"
)

// Config holds all application configuration. Every service loads the same
// struct and uses the slice it needs.
type Config struct {
	// HTTPAddr is the address the ordering API binds to.
	HTTPAddr string

	// RedisAddr is the address of the shared Redis instance (event bus,
	// baskets, checkout references, capture markers).
	RedisAddr string

	// SQLitePath is the ordering database file.
	SQLitePath string

	// GracePeriod is how long an order stays in Submitted before stock
	// validation starts; GracePeriodInterval is the worker's poll interval.
	GracePeriod         time.Duration
	GracePeriodInterval time.Duration

	// PaymentProvider selects the capture pathway: "paypal" or "simulated".
	PaymentProvider string
	// PaymentGatewayEnabled gates the capture call. When false the capture
	// outcome is PaymentSucceeded without touching the provider.
	PaymentGatewayEnabled bool
	// PaymentSucceeded is the simulated capture outcome used when the
	// gateway is disabled or unconfigured.
	PaymentSucceeded bool
	// PaymentCaptureTimeout bounds the gateway round trip.
	PaymentCaptureTimeout time.Duration

	// PayPalClientID and PayPalClientSecret are the OAuth credentials;
	// PayPalLive selects the production environment over the sandbox.
	PayPalClientID     string
	PayPalClientSecret string
	PayPalLive         bool

	// CurrencyCode is the three-letter ISO code used for payment orders.
	CurrencyCode string
}

// Load loads configuration from environment variables and .env file.
func Load() *Config {
	// Try to load .env file recursively
	loadDotEnv()

	return &Config{
		HTTPAddr:   env.GetString("HTTP_ADDR", ":8080"),
		RedisAddr:  env.GetString("REDIS_ADDR", "localhost:6379"),
		SQLitePath: env.GetString("SQLITE_PATH", "./data/ordering.db"),

		GracePeriod:         env.GetDuration("GRACE_PERIOD_SECONDS", 60, time.Second),
		GracePeriodInterval: env.GetDuration("GRACE_PERIOD_INTERVAL_SECONDS", 10, time.Second),

		PaymentProvider:       env.GetString("PAYMENT_PROVIDER", "simulated"),
		PaymentGatewayEnabled: env.GetBool("PAYMENT_GATEWAY_ENABLED", true),
		PaymentSucceeded:      env.GetBool("PAYMENT_SUCCEEDED", true),
		PaymentCaptureTimeout: env.GetDuration("PAYMENT_CAPTURE_TIMEOUT_SECONDS", 30, time.Second),

		PayPalClientID:     env.GetString("PAYPAL_CLIENT_ID", ""),
		PayPalClientSecret: env.GetString("PAYPAL_CLIENT_SECRET", ""),
		PayPalLive:         env.GetBool("PAYPAL_LIVE", false),

		CurrencyCode: env.GetString("CURRENCY_CODE", "USD"),
	}
}

// loadDotEnv walks up from the working directory until it finds a .env file.
func loadDotEnv() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}
	for {
		candidate := filepath.Join(dir, ".env")
		if _, err := os.Stat(candidate); err == nil {
			_ = godotenv.Load(candidate)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return
		}
		dir = parent
	}
}

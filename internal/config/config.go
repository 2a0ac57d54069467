// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port         string
	PostgresURL  string
	DBSchema     string
	RedisAddr    string
	KafkaBrokers []string
	JWTSecret    string
	OTLPEndpoint string

	// InternalToken authenticates service-to-service calls such as order confirmation.
	InternalToken string

	CheckoutTimeout    time.Duration
	CheckoutMaxRetries int
	CartCacheTTL       time.Duration

	StorefrontServiceURL string
	InventoryServiceURL  string
	EmailServiceURL      string
}

// Load reads every variable, applying defaults. port is the default for PORT so each
// binary keeps its own conventional port.
func Load(port string) (Config, error) {
	cfg := Config{
		Port:         getEnv("PORT", port),
		PostgresURL:  os.Getenv("POSTGRES_URL"),
		DBSchema:     getEnv("DB_SCHEMA", "storefront"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		JWTSecret:    os.Getenv("JWT_SECRET"),
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		InternalToken: os.Getenv("INTERNAL_TOKEN"),

		StorefrontServiceURL: getEnv("STOREFRONT_SERVICE_URL", "http://localhost:8081"),
		InventoryServiceURL:  getEnv("INVENTORY_SERVICE_URL", "http://localhost:8082"),
		EmailServiceURL:      getEnv("EMAIL_SERVICE_URL", "http://localhost:8083"),
	}

	var errs []error
	var err error
	if cfg.CheckoutTimeout, err = getDuration("CHECKOUT_TIMEOUT", 20*time.Second); err != nil {
		errs = append(errs, err)
	}
	if cfg.CartCacheTTL, err = getDuration("CART_CACHE_TTL", 5*time.Minute); err != nil {
		errs = append(errs, err)
	}
	if cfg.CheckoutMaxRetries, err = getInt("CHECKOUT_MAX_RETRIES", 3); err != nil {
		errs = append(errs, err)
	}

	return cfg, errors.Join(errs...)
}

// Require reports every named setting that is empty.
func (c Config) Require(names ...string) error {
	values := map[string]string{
		"POSTGRES_URL":   c.PostgresURL,
		"JWT_SECRET":     c.JWTSecret,
		"REDIS_ADDR":     c.RedisAddr,
		"KAFKA_BROKERS":  strings.Join(c.KafkaBrokers, ","),
		"INTERNAL_TOKEN": c.InternalToken,
	}

	var missing []string
	for _, name := range names {
		if values[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback, fmt.Errorf("%s: invalid duration %q", key, v)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback, fmt.Errorf("%s: invalid non-negative integer %q", key, v)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

package gateway

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/Apurer/go-order-saga/internal/app/backends"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

// Config carries environment-driven settings for the gateway process.
type Config struct {
	Port              string
	LedgerBackend     backends.Kind
	RegistryBackend   backends.Kind
	PostgresDSN       string
	RedisURL          string
	InitialStock      int64
	TemporalAddress   string
	TemporalNamespace string
	TemporalDisabled  bool
	WaitForSagaResult bool
	ConnectionTTL     time.Duration
	ReleaseOnRefund   bool
}

// LoadConfig reads environment variables, applies defaults, and validates basic constraints.
func LoadConfig() (Config, error) {
	cfg := Config{
		Port:              envDefault("PORT", "8080"),
		PostgresDSN:       strings.TrimSpace(os.Getenv("POSTGRES_DSN")),
		RedisURL:          strings.TrimSpace(os.Getenv("REDIS_URL")),
		InitialStock:      domain.DefaultInitialStock,
		TemporalAddress:   envDefault("TEMPORAL_ADDRESS", client.DefaultHostPort),
		TemporalNamespace: envDefault("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		TemporalDisabled:  isTruthy(os.Getenv("TEMPORAL_DISABLED")),
		WaitForSagaResult: isTruthy(os.Getenv("WAIT_FOR_SAGA_RESULT")),
		ConnectionTTL:     2 * time.Hour,
		ReleaseOnRefund:   isTruthy(os.Getenv("RELEASE_INVENTORY_ON_REFUND")),
	}
	var err error
	if cfg.LedgerBackend, err = backends.ParseKind(os.Getenv("LEDGER_BACKEND")); err != nil {
		return Config{}, fmt.Errorf("LEDGER_BACKEND: %w", err)
	}
	if cfg.RegistryBackend, err = backends.ParseKind(os.Getenv("REGISTRY_BACKEND")); err != nil {
		return Config{}, fmt.Errorf("REGISTRY_BACKEND: %w", err)
	}
	if raw := strings.TrimSpace(os.Getenv("DEFAULT_INITIAL_STOCK")); raw != "" {
		stock, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || stock < 0 {
			return Config{}, fmt.Errorf("DEFAULT_INITIAL_STOCK must be a non-negative integer")
		}
		cfg.InitialStock = stock
	}
	if raw := strings.TrimSpace(os.Getenv("CONNECTION_TTL_HOURS")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return Config{}, fmt.Errorf("CONNECTION_TTL_HOURS must be a positive integer")
		}
		cfg.ConnectionTTL = time.Duration(hours) * time.Hour
	}
	return cfg, nil
}

// Backends returns the storage settings shared with the worker.
func (c Config) Backends() backends.Settings {
	return backends.Settings{
		Ledger:        c.LedgerBackend,
		Registry:      c.RegistryBackend,
		PostgresDSN:   c.PostgresDSN,
		RedisURL:      c.RedisURL,
		ConnectionTTL: c.ConnectionTTL,
	}
}

func envDefault(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func isTruthy(value string) bool {
	value = strings.TrimSpace(strings.ToLower(value))
	return value == "1" || value == "true" || value == "yes"
}

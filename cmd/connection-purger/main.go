package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	orderspostgres "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/persistence/postgres"
	ordersredis "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/redis"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	platformpostgres "github.com/Apurer/go-order-saga/internal/platform/postgres"
	platformredis "github.com/Apurer/go-order-saga/internal/platform/redis"
)

const defaultConnectionTTL = 2 * time.Hour

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ttl := connectionTTLFromEnv()
	registry, cleanup := buildRegistry(ctx, logger, ttl)
	defer cleanup()
	if registry == nil {
		log.Fatal("no persistent connection registry reachable; nothing to purge")
	}

	cutoff := time.Now().Add(-ttl)
	purged, err := registry.PurgeStale(ctx, cutoff)
	if err != nil {
		log.Fatalf("failed to purge connections: %v", err)
	}
	logger.Info("connection purge completed", slog.Int64("purged", purged), slog.Time("cutoff", cutoff))
}

// buildRegistry prefers redis when REGISTRY_BACKEND=redis, postgres otherwise.
func buildRegistry(ctx context.Context, logger *slog.Logger, ttl time.Duration) (ports.ConnectionRegistry, func()) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("REGISTRY_BACKEND")), "redis") {
		client, cleanup := platformredis.ConnectFromEnv(ctx, logger)
		if client == nil {
			return nil, cleanup
		}
		return ordersredis.NewRegistry(client, ordersredis.WithConnectionTTL(ttl)), cleanup
	}
	db, cleanup := platformpostgres.ConnectFromEnv(ctx, logger)
	if db == nil {
		return nil, cleanup
	}
	return orderspostgres.NewRegistry(db), cleanup
}

func connectionTTLFromEnv() time.Duration {
	raw := strings.TrimSpace(os.Getenv("CONNECTION_TTL_HOURS"))
	if raw == "" {
		return defaultConnectionTTL
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours <= 0 {
		return defaultConnectionTTL
	}
	return time.Duration(hours) * time.Hour
}

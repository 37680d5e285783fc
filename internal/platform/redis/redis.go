package redis

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Connect parses a redis:// URL, dials it and verifies connectivity.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("redis URL is empty")
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := goredis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// ConnectFromEnv dials REDIS_URL and returns the client plus a cleanup function.
// When REDIS_URL is missing or unreachable it logs and returns nil with a no-op cleanup.
func ConnectFromEnv(ctx context.Context, logger *slog.Logger) (*goredis.Client, func()) {
	url := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if url == "" {
		if logger != nil {
			logger.Warn("REDIS_URL not set, falling back to in-memory adapters")
		}
		return nil, func() {}
	}
	client, err := Connect(ctx, url)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to connect to redis, falling back to in-memory adapters", slog.String("error", err.Error()))
		}
		return nil, func() {}
	}
	if logger != nil {
		logger.Info("redis connection established")
	}
	return client, func() { _ = client.Close() }
}

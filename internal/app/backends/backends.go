package backends

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	orderspostgres "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/persistence/postgres"
	ordersredis "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/redis"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	"github.com/Apurer/go-order-saga/internal/platform/migrations"
	platformpostgres "github.com/Apurer/go-order-saga/internal/platform/postgres"
	platformredis "github.com/Apurer/go-order-saga/internal/platform/redis"
)

// Kind names a storage backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindPostgres Kind = "postgres"
	KindRedis    Kind = "redis"
)

// ParseKind validates a backend name; empty means memory.
func ParseKind(raw string) (Kind, error) {
	switch kind := Kind(strings.ToLower(strings.TrimSpace(raw))); kind {
	case "":
		return KindMemory, nil
	case KindMemory, KindPostgres, KindRedis:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown backend %q (want memory, postgres or redis)", raw)
	}
}

// Settings selects the stores backing the ledger and the connection registry.
type Settings struct {
	Ledger        Kind
	Registry      Kind
	PostgresDSN   string
	RedisURL      string
	ConnectionTTL time.Duration
}

// Backends holds the constructed stores and the connections they share.
type Backends struct {
	Ledger   ports.StockLedger
	Registry ports.ConnectionRegistry

	db       *gorm.DB
	redis    *goredis.Client
	cleanups []func()
}

// Build connects the requested stores. A store whose connection is missing or fails falls
// back to memory with a warning, so a single process can always start.
func Build(ctx context.Context, settings Settings, logger *slog.Logger) *Backends {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backends{}
	b.Ledger = b.buildLedger(ctx, settings, logger)
	b.Registry = b.buildRegistry(ctx, settings, logger)
	return b
}

// Close releases every connection opened by Build.
func (b *Backends) Close() {
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		b.cleanups[i]()
	}
	b.cleanups = nil
}

func (b *Backends) buildLedger(ctx context.Context, settings Settings, logger *slog.Logger) ports.StockLedger {
	switch settings.Ledger {
	case KindPostgres:
		if db := b.postgres(ctx, settings.PostgresDSN, logger); db != nil {
			logger.Info("stock ledger configured with postgres")
			return orderspostgres.NewLedger(db)
		}
	case KindRedis:
		if client := b.redisClient(ctx, settings.RedisURL, logger); client != nil {
			logger.Info("stock ledger configured with redis")
			return ordersredis.NewLedger(client)
		}
	}
	logger.Warn("stock ledger running in memory; stock is not shared between processes")
	return memory.NewLedger()
}

func (b *Backends) buildRegistry(ctx context.Context, settings Settings, logger *slog.Logger) ports.ConnectionRegistry {
	switch settings.Registry {
	case KindPostgres:
		if db := b.postgres(ctx, settings.PostgresDSN, logger); db != nil {
			logger.Info("connection registry configured with postgres")
			return orderspostgres.NewRegistry(db)
		}
	case KindRedis:
		if client := b.redisClient(ctx, settings.RedisURL, logger); client != nil {
			logger.Info("connection registry configured with redis")
			return ordersredis.NewRegistry(client, ordersredis.WithConnectionTTL(settings.ConnectionTTL))
		}
	}
	logger.Warn("connection registry running in memory")
	return memory.NewRegistry()
}

func (b *Backends) postgres(ctx context.Context, dsn string, logger *slog.Logger) *gorm.DB {
	if b.db != nil {
		return b.db
	}
	if strings.TrimSpace(dsn) == "" {
		logger.Warn("POSTGRES_DSN not set, falling back to memory")
		return nil
	}
	db, err := platformpostgres.Connect(ctx, dsn)
	if err != nil {
		logger.Warn("failed to connect to postgres, falling back to memory", slog.String("error", err.Error()))
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("failed to unwrap postgres connection, falling back to memory", slog.String("error", err.Error()))
		return nil
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("failed to migrate postgres schema, falling back to memory", slog.String("error", err.Error()))
		_ = sqlDB.Close()
		return nil
	}
	b.db = db
	b.cleanups = append(b.cleanups, func() { _ = sqlDB.Close() })
	return db
}

func (b *Backends) redisClient(ctx context.Context, url string, logger *slog.Logger) *goredis.Client {
	if b.redis != nil {
		return b.redis
	}
	if strings.TrimSpace(url) == "" {
		logger.Warn("REDIS_URL not set, falling back to memory")
		return nil
	}
	client, err := platformredis.Connect(ctx, url)
	if err != nil {
		logger.Warn("failed to connect to redis, falling back to memory", slog.String("error", err.Error()))
		return nil
	}
	b.redis = client
	b.cleanups = append(b.cleanups, func() { _ = client.Close() })
	return client
}

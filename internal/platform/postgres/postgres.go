// Package postgres opens the GORM handle shared by the orders stock ledger and
// connection registry adapters.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// ErrEmptyDSN is returned when no connection string is configured.
var ErrEmptyDSN = errors.New("postgres DSN is empty")

const (
	pingTimeout     = 5 * time.Second
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Connect opens the orders database and pings it. The pool is sized for short
// conditional updates on stock rows and single-row registry writes.
func Connect(ctx context.Context, dsn string) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open orders database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap orders database: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping orders database: %w", err)
	}
	return db, nil
}

// ConnectFromEnv dials POSTGRES_DSN for tools that only need the connection registry,
// such as the connection purger. It returns nil and a no-op cleanup when the DSN is
// missing or unreachable.
func ConnectFromEnv(ctx context.Context, logger *slog.Logger) (*gorm.DB, func()) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := Connect(ctx, os.Getenv("POSTGRES_DSN"))
	if err != nil {
		if errors.Is(err, ErrEmptyDSN) {
			logger.Warn("POSTGRES_DSN not set, connection registry unavailable")
		} else {
			logger.Warn("connection registry database unreachable", slog.String("error", err.Error()))
		}
		return nil, func() {}
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Warn("connection registry database unusable", slog.String("error", err.Error()))
		return nil, func() {}
	}
	logger.Info("connection registry database ready")
	return db, func() { _ = sqlDB.Close() }
}

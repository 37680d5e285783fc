package ports

import (
	"context"
	"errors"
	"time"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

var ErrConnectionNotFound = errors.New("connection not found")

// ConnectionReader is the read-only view of the registry used on the notification error path.
type ConnectionReader interface {
	GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionRecord, error)
}

// ConnectionRegistry maps connection ids to liveness metadata.
type ConnectionRegistry interface {
	ConnectionReader
	PutConnection(ctx context.Context, record domain.ConnectionRecord) error
	DeleteConnection(ctx context.Context, connectionID string) error
	// PurgeStale removes records connected at or before cutoff and returns how many went.
	PurgeStale(ctx context.Context, cutoff time.Time) (int64, error)
}

package ports

import (
	"context"
	"errors"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

var (
	// ErrNotFound signals the SKU has no ledger entry yet.
	ErrNotFound = errors.New("stock record not found")
	// ErrConditionFailed signals the guard did not hold when the update was applied.
	ErrConditionFailed = errors.New("stock condition failed")
)

// StockLedger stores one StockRecord per SKU. Implementations must make PutIfAbsent and
// ConditionalUpdate atomic in the store itself; callers hold no locks.
type StockLedger interface {
	// Get returns the record or ErrNotFound.
	Get(ctx context.Context, sku string) (*domain.StockRecord, error)
	// PutIfAbsent inserts the record unless one exists. It reports whether this call created it;
	// an existing record is a successful no-op.
	PutIfAbsent(ctx context.Context, record domain.StockRecord) (bool, error)
	// ConditionalUpdate adds delta when guard holds and returns the post-image.
	// A failed guard, including a missing record, yields ErrConditionFailed.
	ConditionalUpdate(ctx context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error)
}

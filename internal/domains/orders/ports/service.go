package ports

import (
	"context"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

// Steps exposes the saga steps an orchestrator chains. Each step receives the accumulated
// record and returns an extended copy; it keeps no state between invocations.
type Steps interface {
	Validate(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error)
	Reserve(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error)
	Notify(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error)
	Refund(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error)
}

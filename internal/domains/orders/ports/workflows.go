package ports

import (
	"context"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

// FulfillmentRun describes a started saga. Result is only set when the saga ran to completion
// before StartFulfillment returned.
type FulfillmentRun struct {
	WorkflowID string
	Result     *domain.OrderContext
}

// FulfillmentOrchestrator starts the fulfillment saga for an order.
type FulfillmentOrchestrator interface {
	StartFulfillment(ctx context.Context, order domain.OrderContext) (*FulfillmentRun, error)
}

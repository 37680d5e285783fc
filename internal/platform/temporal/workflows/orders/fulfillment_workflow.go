package orders

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/platform/temporal/sequences"
)

const (
	// FulfillmentWorkflowName is the public identifier for registering the workflow.
	FulfillmentWorkflowName = "orders.workflows.Fulfillment"
	// FulfillmentTaskQueue is the queue consumed by the worker running the order saga.
	FulfillmentTaskQueue = "ORDER_FULFILLMENT"
)

// FulfillmentWorkflowInput carries the order record into the saga.
type FulfillmentWorkflowInput struct {
	Order   domain.OrderContext
	TraceID string
}

// FulfillmentWorkflow runs validate, reserve, refund and notify for one order.
func FulfillmentWorkflow(ctx workflow.Context, input FulfillmentWorkflowInput) (*domain.OrderContext, error) {
	logger := workflow.GetLogger(ctx)
	orderID := input.Order.OrderID
	logger.Info("FulfillmentWorkflow started", withTraceID(input.TraceID, "orderId", orderID)...)
	result, err := sequences.RunFulfillmentSequence(ctx, input.Order)
	if err != nil {
		logger.Error("FulfillmentWorkflow failed", withTraceID(input.TraceID, "orderId", orderID, "error", err)...)
		return nil, err
	}
	logger.Info("FulfillmentWorkflow completed", withTraceID(input.TraceID, "orderId", orderID, "status", string(result.Status))...)
	return &result, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}

package sequences

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	orderactivities "github.com/Apurer/go-order-saga/internal/platform/temporal/activities/orders"
)

// maxSteps bounds the loop should the routing table ever gain a cycle.
const maxSteps = 8

// RunFulfillmentSequence executes the saga steps in the order the routing table picks from
// each step's resulting status.
func RunFulfillmentSequence(ctx workflow.Context, order domain.OrderContext) (domain.OrderContext, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("fulfillment sequence started", "orderId", order.OrderID)

	current := order
	step := domain.StepValidate
	for i := 0; step != domain.StepDone; i++ {
		if i >= maxSteps {
			return current, fmt.Errorf("fulfillment sequence exceeded %d steps", maxSteps)
		}
		name, ok := orderactivities.ActivityNameFor(step)
		if !ok {
			return current, fmt.Errorf("no activity registered for step %q", step)
		}
		var next domain.OrderContext
		stepCtx := workflow.WithActivityOptions(ctx, activityOptionsFor(step))
		if err := workflow.ExecuteActivity(stepCtx, name, current).Get(ctx, &next); err != nil {
			logger.Error("fulfillment sequence step failed", "orderId", order.OrderID, "step", string(step), "error", err)
			return current, err
		}
		logger.Info("fulfillment sequence step completed", "orderId", order.OrderID, "step", string(step), "status", string(next.Status))
		current = next
		step = domain.NextStep(step, current.Status)
	}
	return current, nil
}

// activityOptionsFor gives Reserve and Notify a single attempt: a reservation whose reply was
// lost may already have committed, and a push is never repeated. Validate and Refund retry on
// transient errors.
func activityOptionsFor(step domain.Step) workflow.ActivityOptions {
	switch step {
	case domain.StepReserve:
		return workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		}
	case domain.StepNotify:
		return workflow.ActivityOptions{
			StartToCloseTimeout: 30 * time.Second,
			RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
		}
	case domain.StepRefund:
		return workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    2 * time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    30 * time.Second,
				MaximumAttempts:    10,
			},
		}
	default:
		return workflow.ActivityOptions{
			StartToCloseTimeout: time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    2 * time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    10 * time.Second,
				MaximumAttempts:    5,
			},
		}
	}
}

package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

const (
	// ValidateActivityName checks the record carries the ids every later step needs.
	ValidateActivityName = "orders.activities.Validate"
	// ReserveActivityName reserves one unit of the record's SKU.
	ReserveActivityName = "orders.activities.Reserve"
	// NotifyActivityName pushes the record's status to its connection.
	NotifyActivityName = "orders.activities.Notify"
	// RefundActivityName compensates a failed reservation.
	RefundActivityName = "orders.activities.Refund"
)

var activityNames = map[domain.Step]string{
	domain.StepValidate: ValidateActivityName,
	domain.StepReserve:  ReserveActivityName,
	domain.StepNotify:   NotifyActivityName,
	domain.StepRefund:   RefundActivityName,
}

// ActivityNameFor returns the registered activity name of a saga step.
func ActivityNameFor(step domain.Step) (string, bool) {
	name, ok := activityNames[step]
	return name, ok
}

// Activities exposes each saga step as a Temporal activity.
type Activities struct {
	steps ports.Steps
}

// NewActivities wires the saga steps into the activities bundle.
func NewActivities(steps ports.Steps) *Activities {
	return &Activities{steps: steps}
}

func (a *Activities) Validate(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return a.run(ctx, domain.StepValidate, order)
}

func (a *Activities) Reserve(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return a.run(ctx, domain.StepReserve, order)
}

func (a *Activities) Notify(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return a.run(ctx, domain.StepNotify, order)
}

func (a *Activities) Refund(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return a.run(ctx, domain.StepRefund, order)
}

func (a *Activities) run(ctx context.Context, step domain.Step, order domain.OrderContext) (domain.OrderContext, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.steps == nil {
		logger.Error("order activities not initialized", "step", string(step), "orderId", order.OrderID)
		return domain.OrderContext{}, errors.New("order activities not initialized")
	}
	logger.Info("order step started", "step", string(step), "orderId", order.OrderID)

	var (
		out domain.OrderContext
		err error
	)
	switch step {
	case domain.StepValidate:
		out, err = a.steps.Validate(ctx, order)
	case domain.StepReserve:
		out, err = a.steps.Reserve(ctx, order)
	case domain.StepNotify:
		out, err = a.steps.Notify(ctx, order)
	case domain.StepRefund:
		out, err = a.steps.Refund(ctx, order)
	default:
		return domain.OrderContext{}, temporal.NewNonRetryableApplicationError("unknown saga step", "UNKNOWN_STEP", nil, string(step))
	}
	if err != nil {
		logger.Error("order step failed", "step", string(step), "orderId", order.OrderID, "error", err)
		return domain.OrderContext{}, toApplicationError(err)
	}
	logger.Info("order step completed", "step", string(step), "orderId", out.OrderID, "status", string(out.Status))
	return out, nil
}

// toApplicationError marks input failures as non-retryable; everything else keeps the
// activity retry policy.
func toApplicationError(err error) error {
	if stepErr, ok := application.AsStepError(err); ok {
		return temporal.NewNonRetryableApplicationError(stepErr.Error(), stepErr.Code(), nil, string(stepErr.Step), string(stepErr.Field))
	}
	return err
}

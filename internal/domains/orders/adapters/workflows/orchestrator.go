package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/go-order-saga/internal/platform/temporal/workflows/orders"
)

var (
	_ ports.FulfillmentOrchestrator = (*TemporalOrchestrator)(nil)
	_ ports.FulfillmentOrchestrator = (*InlineOrchestrator)(nil)
)

// TemporalOrchestrator starts fulfillment sagas on a Temporal cluster.
type TemporalOrchestrator struct {
	client        client.Client
	taskQueue     string
	waitForResult bool
}

// TemporalOption configures a TemporalOrchestrator.
type TemporalOption func(*TemporalOrchestrator)

// WithTaskQueue overrides the fulfillment task queue.
func WithTaskQueue(queue string) TemporalOption {
	return func(o *TemporalOrchestrator) {
		if queue != "" {
			o.taskQueue = queue
		}
	}
}

// WithWaitForResult blocks StartFulfillment until the saga finishes.
func WithWaitForResult() TemporalOption {
	return func(o *TemporalOrchestrator) {
		o.waitForResult = true
	}
}

// NewTemporalOrchestrator wires a Temporal client into the orchestrator.
func NewTemporalOrchestrator(c client.Client, opts ...TemporalOption) *TemporalOrchestrator {
	o := &TemporalOrchestrator{client: c, taskQueue: orderworkflows.FulfillmentTaskQueue}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	return o
}

// StartFulfillment starts one workflow per order id. Starting an order that already has a
// running saga returns that saga instead of a second one.
func (o *TemporalOrchestrator) StartFulfillment(ctx context.Context, order domain.OrderContext) (*ports.FulfillmentRun, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal fulfillment orchestrator not configured")
	}
	if order.OrderID == "" {
		return nil, errors.New("order id is required to start fulfillment")
	}
	workflowID := BuildFulfillmentWorkflowID(order.OrderID)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(ctx, options, orderworkflows.FulfillmentWorkflowName,
		orderworkflows.FulfillmentWorkflowInput{Order: order, TraceID: workflowTraceID(ctx)})
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if !errors.As(err, &alreadyStarted) {
			return nil, fmt.Errorf("start fulfillment workflow: %w", err)
		}
		run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
	}
	result := &ports.FulfillmentRun{WorkflowID: run.GetID()}
	if !o.waitForResult {
		return result, nil
	}
	var final domain.OrderContext
	if err := run.Get(ctx, &final); err != nil {
		return nil, err
	}
	result.Result = &final
	return result, nil
}

// InlineOrchestrator runs the saga in-process, for tests or when Temporal is unavailable.
type InlineOrchestrator struct {
	steps ports.Steps
	newID func() string
}

// NewInlineOrchestrator wraps the saga steps for synchronous execution.
func NewInlineOrchestrator(steps ports.Steps) *InlineOrchestrator {
	return &InlineOrchestrator{
		steps: steps,
		newID: func() string { return fmt.Sprintf("inline-%d", time.Now().UnixNano()) },
	}
}

// StartFulfillment runs every step before returning and reports the final record.
func (o *InlineOrchestrator) StartFulfillment(ctx context.Context, order domain.OrderContext) (*ports.FulfillmentRun, error) {
	if o == nil || o.steps == nil {
		return nil, errors.New("inline fulfillment orchestrator not configured")
	}
	final, err := RunSteps(ctx, o.steps, order)
	if err != nil {
		return nil, err
	}
	return &ports.FulfillmentRun{WorkflowID: o.newID(), Result: &final}, nil
}

// RunSteps chains the steps with the same routing the Temporal sequence uses.
func RunSteps(ctx context.Context, steps ports.Steps, order domain.OrderContext) (domain.OrderContext, error) {
	current := order
	step := domain.StepValidate
	for step != domain.StepDone {
		var (
			next domain.OrderContext
			err  error
		)
		switch step {
		case domain.StepValidate:
			next, err = steps.Validate(ctx, current)
		case domain.StepReserve:
			next, err = steps.Reserve(ctx, current)
		case domain.StepNotify:
			next, err = steps.Notify(ctx, current)
		case domain.StepRefund:
			next, err = steps.Refund(ctx, current)
		default:
			return current, fmt.Errorf("unknown saga step %q", step)
		}
		if err != nil {
			return current, err
		}
		current = next
		step = domain.NextStep(step, current.Status)
	}
	return current, nil
}

// BuildFulfillmentWorkflowID derives the workflow id from the order id.
func BuildFulfillmentWorkflowID(orderID string) string {
	return "order-fulfillment-" + orderID
}

func workflowTraceID(ctx context.Context) string {
	spanCtx := oteltrace.SpanFromContext(ctx).SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

package workflows

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/mocks"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	orderworkflows "github.com/Apurer/go-order-saga/internal/platform/temporal/workflows/orders"
)

type nopTransport struct{}

func (nopTransport) PushToConnection(context.Context, string, []byte) error { return nil }

func newSteps(ledger *memory.Ledger) *application.Service {
	return application.NewService(
		application.NewReservationEngine(ledger),
		application.NewCompensationHandler(memory.NewSettlement(nil)),
		application.NewNotificationDispatcher(nopTransport{}),
	)
}

func TestInlineOrchestrator_RunsSagaToCompletion(t *testing.T) {
	ledger := memory.NewLedger()
	ledger.Seed(domain.StockRecord{SKU: "X2", Available: 0})
	orchestrator := NewInlineOrchestrator(newSteps(ledger))

	run, err := orchestrator.StartFulfillment(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.NotEmpty(t, run.WorkflowID)
	require.Equal(t, domain.StatusReserved, run.Result.Status)

	run, err = orchestrator.StartFulfillment(context.Background(), domain.OrderContext{OrderID: "O2", ConnectionID: "C2", SKU: "X2", Amount: json.RawMessage(`20`)})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, run.Result.Status)
}

func TestInlineOrchestrator_ValidateFailureStops(t *testing.T) {
	orchestrator := NewInlineOrchestrator(newSteps(memory.NewLedger()))

	_, err := orchestrator.StartFulfillment(context.Background(), domain.OrderContext{OrderID: "O1"})
	require.ErrorIs(t, err, application.ErrMissingConnection)
}

func TestTemporalOrchestrator_StartsWorkflowPerOrder(t *testing.T) {
	c := &mocks.Client{}
	run := &mocks.WorkflowRun{}
	run.On("GetID").Return("order-fulfillment-O1")
	c.On("ExecuteWorkflow", mock.Anything, mock.MatchedBy(func(opts client.StartWorkflowOptions) bool {
		return opts.ID == "order-fulfillment-O1" && opts.TaskQueue == orderworkflows.FulfillmentTaskQueue
	}), orderworkflows.FulfillmentWorkflowName, mock.Anything).Return(run, nil)

	started, err := NewTemporalOrchestrator(c).StartFulfillment(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, "order-fulfillment-O1", started.WorkflowID)
	require.Nil(t, started.Result)
	c.AssertExpectations(t)
}

func TestTemporalOrchestrator_ReusesRunningWorkflow(t *testing.T) {
	c := &mocks.Client{}
	existing := &mocks.WorkflowRun{}
	existing.On("GetID").Return("order-fulfillment-O1")
	existing.On("Get", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		out := args.Get(1).(*domain.OrderContext)
		*out = domain.OrderContext{OrderID: "O1", Status: domain.StatusReserved}
	})
	c.On("ExecuteWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, serviceerror.NewWorkflowExecutionAlreadyStarted("already started", "", "run-1"))
	c.On("GetWorkflow", mock.Anything, "order-fulfillment-O1", "run-1").Return(existing)

	started, err := NewTemporalOrchestrator(c, WithWaitForResult()).StartFulfillment(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, started.Result.Status)
}

func TestTemporalOrchestrator_RequiresOrderID(t *testing.T) {
	_, err := NewTemporalOrchestrator(&mocks.Client{}).StartFulfillment(context.Background(), domain.OrderContext{})
	require.Error(t, err)
}

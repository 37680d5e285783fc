package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/go-order-saga/internal/platform/temporal/activities/orders"
)

type fulfillmentFixture struct {
	env        *testsuite.TestWorkflowEnvironment
	ledger     *memory.Ledger
	settlement *memory.Settlement
	transport  *pushRecorder
}

func newFulfillmentFixture(t *testing.T) fulfillmentFixture {
	t.Helper()
	return buildFulfillmentFixture(t, func(l *memory.Ledger) ports.StockLedger { return l })
}

func buildFulfillmentFixture(t *testing.T, wrap func(*memory.Ledger) ports.StockLedger) fulfillmentFixture {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	ledger := memory.NewLedger()
	settlement := memory.NewSettlement(nil)
	transport := &pushRecorder{}
	svc := application.NewService(
		application.NewReservationEngine(wrap(ledger)),
		application.NewCompensationHandler(settlement),
		application.NewNotificationDispatcher(transport),
	)
	acts := orderactivities.NewActivities(svc)
	env.RegisterActivityWithOptions(acts.Validate, activity.RegisterOptions{Name: orderactivities.ValidateActivityName})
	env.RegisterActivityWithOptions(acts.Reserve, activity.RegisterOptions{Name: orderactivities.ReserveActivityName})
	env.RegisterActivityWithOptions(acts.Notify, activity.RegisterOptions{Name: orderactivities.NotifyActivityName})
	env.RegisterActivityWithOptions(acts.Refund, activity.RegisterOptions{Name: orderactivities.RefundActivityName})
	return fulfillmentFixture{env: env, ledger: ledger, settlement: settlement, transport: transport}
}

func TestFulfillmentWorkflow_ReservesAndNotifies(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := domain.OrderContext{
		OrderID: "O1", ConnectionID: "C1", SKU: "X1",
		Extra: map[string]json.RawMessage{"quantity": json.RawMessage(`1`)},
	}

	f.env.ExecuteWorkflow(FulfillmentWorkflow, FulfillmentWorkflowInput{Order: order})
	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var result domain.OrderContext
	require.NoError(t, f.env.GetWorkflowResult(&result))
	require.Equal(t, domain.StatusReserved, result.Status)
	require.Equal(t, &domain.StockSnapshot{Available: 4, Reserved: 1}, result.InventorySnapshot)
	require.JSONEq(t, `1`, string(result.Extra["quantity"]))

	statuses := f.transport.statuses()
	require.Equal(t, []domain.Status{domain.StatusReserved, domain.StatusReserved}, statuses)
	require.Empty(t, f.settlement.Refunds())
}

func TestFulfillmentWorkflow_OutOfStockRefunds(t *testing.T) {
	f := newFulfillmentFixture(t)
	f.ledger.Seed(domain.StockRecord{SKU: "X2", Available: 0, Reserved: 5})

	order := domain.OrderContext{OrderID: "O2", ConnectionID: "C2", SKU: "X2", Amount: json.RawMessage(`20`)}
	f.env.ExecuteWorkflow(FulfillmentWorkflow, FulfillmentWorkflowInput{Order: order})
	require.True(t, f.env.IsWorkflowCompleted())
	require.NoError(t, f.env.GetWorkflowError())

	var result domain.OrderContext
	require.NoError(t, f.env.GetWorkflowResult(&result))
	require.Equal(t, domain.StatusRefunded, result.Status)

	refunds := f.settlement.Refunds()
	require.Len(t, refunds, 1)
	require.Equal(t, "O2", refunds[0].OrderID)
	require.JSONEq(t, `20`, string(refunds[0].Amount))

	require.Equal(t, []domain.Status{domain.StatusOutOfStock, domain.StatusRefund, domain.StatusRefunded}, f.transport.statuses())
}

func TestFulfillmentWorkflow_InvalidOrderFailsWithoutRetry(t *testing.T) {
	f := newFulfillmentFixture(t)

	f.env.ExecuteWorkflow(FulfillmentWorkflow, FulfillmentWorkflowInput{Order: domain.OrderContext{ConnectionID: "C1", SKU: "X1"}})
	require.True(t, f.env.IsWorkflowCompleted())

	err := f.env.GetWorkflowError()
	require.Error(t, err)
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "INVALID_ORDER", appErr.Type())
	require.True(t, appErr.NonRetryable())
	require.Empty(t, f.transport.statuses())
}

func TestFulfillmentWorkflow_MissingSKUNotifiesInvalidInput(t *testing.T) {
	f := newFulfillmentFixture(t)

	f.env.ExecuteWorkflow(FulfillmentWorkflow, FulfillmentWorkflowInput{Order: domain.OrderContext{OrderID: "O5", ConnectionID: "C5"}})
	require.NoError(t, f.env.GetWorkflowError())

	var result domain.OrderContext
	require.NoError(t, f.env.GetWorkflowResult(&result))
	require.Equal(t, domain.StatusInvalidInput, result.Status)
	require.Equal(t, []domain.Status{domain.StatusInvalidInput}, f.transport.statuses())
}

func TestFulfillmentWorkflow_LostReserveReplyDoesNotReserveTwice(t *testing.T) {
	var ledger *replyLosingLedger
	f := buildFulfillmentFixture(t, func(l *memory.Ledger) ports.StockLedger {
		ledger = &replyLosingLedger{Ledger: l}
		return ledger
	})

	f.env.ExecuteWorkflow(FulfillmentWorkflow, FulfillmentWorkflowInput{Order: domain.OrderContext{OrderID: "O6", ConnectionID: "C6", SKU: "X1"}})
	require.True(t, f.env.IsWorkflowCompleted())
	require.Error(t, f.env.GetWorkflowError())

	require.Equal(t, 1, ledger.updateCalls())
	record, err := f.ledger.Get(context.Background(), "X1")
	require.NoError(t, err)
	require.Equal(t, domain.StockRecord{SKU: "X1", Available: 4, Reserved: 1}, *record)
	require.Empty(t, f.transport.statuses())
}

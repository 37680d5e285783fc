package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	orderactivities "github.com/Apurer/go-order-saga/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/go-order-saga/internal/platform/temporal/workflows/orders"
)

type nopTransport struct{}

func (nopTransport) PushToConnection(context.Context, string, []byte) error { return nil }

func TestRegister_RunsFulfillmentByRegisteredNames(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	steps := application.NewService(
		application.NewReservationEngine(memory.NewLedger()),
		application.NewCompensationHandler(memory.NewSettlement(nil)),
		application.NewNotificationDispatcher(nopTransport{}),
	)
	register(env, orderactivities.NewActivities(steps))

	env.ExecuteWorkflow(orderworkflows.FulfillmentWorkflowName, orderworkflows.FulfillmentWorkflowInput{
		Order: domain.OrderContext{OrderID: "o-1", ConnectionID: "c-1", SKU: "sku-1"},
	})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result *domain.OrderContext
	require.NoError(t, env.GetWorkflowResult(&result))
	require.Equal(t, domain.StatusReserved, result.Status)
}

func TestInterruptOn_ClosesWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := interruptOn(ctx)
	cancel()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("interrupt channel not closed")
	}
}

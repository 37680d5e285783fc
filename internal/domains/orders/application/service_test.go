package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

type serviceFixture struct {
	svc       *Service
	ledger    *countingLedger
	transport *recordingTransport
}

func newServiceFixture() serviceFixture {
	ledger := newCountingLedger()
	transport := &recordingTransport{}
	svc := NewService(
		NewReservationEngine(ledger),
		NewCompensationHandler(memory.NewSettlement(nil)),
		NewNotificationDispatcher(transport),
	)
	return serviceFixture{svc: svc, ledger: ledger, transport: transport}
}

func TestService_Validate(t *testing.T) {
	f := newServiceFixture()

	got, err := f.svc.Validate(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusValid, got.Status)

	_, err = f.svc.Validate(context.Background(), domain.OrderContext{ConnectionID: "C1"})
	require.ErrorIs(t, err, ErrInvalidOrder)
	stepErr, ok := AsStepError(err)
	require.True(t, ok)
	require.Equal(t, "INVALID_ORDER", stepErr.Code())
}

func TestService_ReserveNewSKU(t *testing.T) {
	f := newServiceFixture()
	order := domain.OrderContext{
		OrderID: "O1", ConnectionID: "C1", SKU: "X1", Status: domain.StatusValid,
		Extra: map[string]json.RawMessage{"quantity": json.RawMessage(`1`)},
	}

	got, err := f.svc.Reserve(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, got.Status)
	require.Equal(t, &domain.StockSnapshot{Available: 4, Reserved: 1}, got.InventorySnapshot)
	require.JSONEq(t, `1`, string(got.Extra["quantity"]))

	require.Len(t, f.transport.pushes, 1)
	require.Equal(t, "C1", f.transport.pushes[0].ConnectionID)
	msg := f.transport.messages()[0]
	require.Equal(t, domain.StatusReserved, msg.Status)
	require.Equal(t, "O1", msg.OrderID)
}

func TestService_ReserveExhaustedSKU(t *testing.T) {
	f := newServiceFixture()
	f.ledger.Seed(domain.StockRecord{SKU: "X2", Available: 0, Reserved: 5})

	got, err := f.svc.Reserve(context.Background(), domain.OrderContext{OrderID: "O2", ConnectionID: "C2", SKU: "X2"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefund, got.Status)
	require.Nil(t, got.InventorySnapshot)

	messages := f.transport.messages()
	require.Len(t, messages, 2)
	require.Equal(t, domain.StatusOutOfStock, messages[0].Status)
	require.Equal(t, domain.StatusRefund, messages[1].Status)
}

func TestService_ReserveMissingFieldsReturnsInvalidInput(t *testing.T) {
	f := newServiceFixture()

	got, err := f.svc.Reserve(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusInvalidInput, got.Status)
	require.Zero(t, f.ledger.mutations())
	require.Empty(t, f.transport.pushes)
}

func TestService_ReservePushFailureKeepsDecision(t *testing.T) {
	f := newServiceFixture()
	f.transport.err = errors.New("broken pipe")

	got, err := f.svc.Reserve(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, got.Status)

	record, err := f.ledger.Get(context.Background(), "X1")
	require.NoError(t, err)
	require.Equal(t, int64(1), record.Reserved)
}

func TestService_ReserveLedgerFailure(t *testing.T) {
	f := newServiceFixture()
	f.ledger.updateErr = errors.New("throttled")

	_, err := f.svc.Reserve(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.Error(t, err)
	require.Empty(t, f.transport.pushes)
}

func TestService_NotifyPushesStatus(t *testing.T) {
	f := newServiceFixture()
	order := domain.OrderContext{OrderID: "O3", ConnectionID: "C3", Status: domain.StatusRefunded}

	got, err := f.svc.Notify(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, order, got)
	require.Len(t, f.transport.pushes, 1)
	require.JSONEq(t, `{"type":"ORDER_STATUS","orderId":"O3","status":"REFUNDED"}`, string(f.transport.pushes[0].Data))
}

func TestService_NotifyGoneConnectionSucceeds(t *testing.T) {
	f := newServiceFixture()
	f.transport.err = ports.ErrConnectionGone

	order := domain.OrderContext{OrderID: "O3", ConnectionID: "C3", Status: domain.StatusRefunded}
	got, err := f.svc.Notify(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, got.Status)
}

func TestService_NotifyIncompleteRecordPassesThrough(t *testing.T) {
	f := newServiceFixture()
	order := domain.OrderContext{OrderID: "O3", Status: domain.StatusRefunded}

	got, err := f.svc.Notify(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, order, got)
	require.Empty(t, f.transport.pushes)
}

func TestService_RefundMissingOrderFails(t *testing.T) {
	f := newServiceFixture()

	_, err := f.svc.Refund(context.Background(), domain.OrderContext{ConnectionID: "C3"})
	require.ErrorIs(t, err, ErrInvalidOrder)
}

func TestService_RefundOutOfStockOrder(t *testing.T) {
	f := newServiceFixture()

	got, err := f.svc.Refund(context.Background(), domain.OrderContext{OrderID: "O3", ConnectionID: "C3", Amount: json.RawMessage(`20`), Status: domain.StatusRefund})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, got.Status)
	require.Zero(t, f.ledger.mutations())
}

func TestService_RefundLeavesReservedStockInPlace(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	reserved, err := f.svc.Reserve(ctx, domain.OrderContext{OrderID: "O3", ConnectionID: "C3", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, reserved.Status)
	before := f.ledger.mutations()

	reserved.Amount = json.RawMessage(`20`)
	got, err := f.svc.Refund(ctx, reserved)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, got.Status)
	require.Equal(t, before, f.ledger.mutations())

	record, err := f.ledger.Get(ctx, "X1")
	require.NoError(t, err)
	require.Equal(t, int64(4), record.Available)
	require.Equal(t, int64(1), record.Reserved)
}

package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

func TestRefund_MarksRefundedAndSettles(t *testing.T) {
	settlement := memory.NewSettlement(nil)
	handler := NewCompensationHandler(settlement)

	order := domain.OrderContext{OrderID: "O3", ConnectionID: "C3", Amount: json.RawMessage(`20`), Status: domain.StatusRefund}
	got, err := handler.Refund(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, got.Status)
	require.Equal(t, "O3", got.OrderID)
	require.JSONEq(t, `20`, string(got.Amount))

	refunds := settlement.Refunds()
	require.Len(t, refunds, 1)
	require.Equal(t, "O3", refunds[0].OrderID)
}

func TestRefund_MissingFieldsAreDistinct(t *testing.T) {
	settlement := &failingSettlement{}
	handler := NewCompensationHandler(settlement)

	_, err := handler.Refund(context.Background(), domain.OrderContext{ConnectionID: "C3"})
	require.ErrorIs(t, err, ErrInvalidOrder)

	_, err = handler.Refund(context.Background(), domain.OrderContext{OrderID: "O3"})
	require.ErrorIs(t, err, ErrMissingConnection)
	require.NotErrorIs(t, err, ErrInvalidOrder)

	require.Zero(t, settlement.calls)
}

func TestRefund_SettlementErrorPropagates(t *testing.T) {
	boom := errors.New("gateway down")
	handler := NewCompensationHandler(&failingSettlement{err: boom})

	_, err := handler.Refund(context.Background(), domain.OrderContext{OrderID: "O3", ConnectionID: "C3"})
	require.ErrorIs(t, err, boom)
	_, isStepErr := AsStepError(err)
	require.False(t, isStepErr)
}

func TestRefund_InventoryReleaseOption(t *testing.T) {
	ledger := newCountingLedger()
	ledger.Seed(domain.StockRecord{SKU: "X1", Available: 4, Reserved: 1})
	handler := NewCompensationHandler(memory.NewSettlement(nil), WithInventoryRelease(ledger))

	got, err := handler.Refund(context.Background(), domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusRefunded, got.Status)

	record, err := ledger.Get(context.Background(), "X1")
	require.NoError(t, err)
	require.Equal(t, domain.StockRecord{SKU: "X1", Available: 5, Reserved: 0}, *record)

	// Nothing left to release: the refund still succeeds.
	_, err = handler.Refund(context.Background(), domain.OrderContext{OrderID: "O2", ConnectionID: "C2", SKU: "X1"})
	require.NoError(t, err)
	record, err = ledger.Get(context.Background(), "X1")
	require.NoError(t, err)
	require.Equal(t, int64(5), record.Available)
}

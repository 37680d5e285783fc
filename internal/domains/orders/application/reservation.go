package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

// ReservationGuard is consulted before stock is decremented. Returning an error aborts the
// reservation without touching the ledger. No guard is installed by default, so a repeated
// call for the same order reserves a second unit.
type ReservationGuard interface {
	Admit(ctx context.Context, sku, orderID string) error
}

// Reservation is the outcome of one reservation attempt. Messages are the status pushes the
// caller should deliver, in order; the engine never performs them itself.
type Reservation struct {
	Status   domain.Status
	Snapshot *domain.StockSnapshot
	Messages []domain.StatusMessage
}

// ReservationEngine reserves at most one unit of a SKU per call against a StockLedger.
type ReservationEngine struct {
	ledger       ports.StockLedger
	initialStock int64
	guard        ReservationGuard
}

// EngineOption configures a ReservationEngine.
type EngineOption func(*ReservationEngine)

// WithInitialStock overrides the available count seeded for unseen SKUs.
func WithInitialStock(available int64) EngineOption {
	return func(e *ReservationEngine) {
		if available >= 0 {
			e.initialStock = available
		}
	}
}

// WithReservationGuard installs a guard, e.g. one that deduplicates by order id.
func WithReservationGuard(guard ReservationGuard) EngineOption {
	return func(e *ReservationEngine) {
		e.guard = guard
	}
}

// NewReservationEngine wires the engine to its ledger.
func NewReservationEngine(ledger ports.StockLedger, opts ...EngineOption) *ReservationEngine {
	engine := &ReservationEngine{ledger: ledger, initialStock: domain.DefaultInitialStock}
	for _, opt := range opts {
		if opt != nil {
			opt(engine)
		}
	}
	return engine
}

// Reserve seeds the SKU if it was never seen, then moves one unit from available to reserved
// in a single guarded update. A failed guard is a business outcome: status REFUND with no
// snapshot. Only ErrConditionFailed is absorbed; every other ledger error is returned.
func (e *ReservationEngine) Reserve(ctx context.Context, sku, orderID string) (Reservation, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return Reservation{Status: domain.StatusInvalidInput}, &StepError{Step: domain.StepReserve, Field: domain.FieldSKU, Err: ErrMissingSKU}
	}
	if e == nil || e.ledger == nil {
		return Reservation{}, errors.New("reservation engine not configured")
	}
	if err := e.seed(ctx, sku); err != nil {
		return Reservation{}, err
	}
	if e.guard != nil {
		if err := e.guard.Admit(ctx, sku, orderID); err != nil {
			return Reservation{}, err
		}
	}

	var result Reservation
	record, err := e.ledger.ConditionalUpdate(ctx, sku, domain.ReserveOne, domain.RequireAvailableUnit)
	switch {
	case err == nil:
		snapshot := record.Snapshot()
		result.Status = domain.StatusReserved
		result.Snapshot = &snapshot
	case errors.Is(err, ports.ErrConditionFailed):
		result.Status = domain.StatusRefund
		result.Messages = append(result.Messages, domain.StatusMessage{OrderID: orderID, Status: domain.StatusOutOfStock})
	default:
		return Reservation{}, fmt.Errorf("reserve %s: %w", sku, err)
	}
	result.Messages = append(result.Messages, domain.StatusMessage{
		OrderID:           orderID,
		Status:            result.Status,
		SKU:               sku,
		InventorySnapshot: result.Snapshot,
	})
	return result, nil
}

func (e *ReservationEngine) seed(ctx context.Context, sku string) error {
	_, err := e.ledger.Get(ctx, sku)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ports.ErrNotFound) {
		return fmt.Errorf("load stock %s: %w", sku, err)
	}
	record, err := domain.NewStockRecord(sku, e.initialStock)
	if err != nil {
		return err
	}
	if _, err := e.ledger.PutIfAbsent(ctx, record); err != nil {
		return fmt.Errorf("seed stock %s: %w", sku, err)
	}
	return nil
}

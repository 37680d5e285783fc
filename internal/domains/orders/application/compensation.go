package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

// CompensationHandler refunds an order after a later saga step failed.
type CompensationHandler struct {
	settlement ports.Settlement
	ledger     ports.StockLedger
	release    bool
	logger     *slog.Logger
}

// CompensationOption configures a CompensationHandler.
type CompensationOption func(*CompensationHandler)

// WithInventoryRelease makes Refund move one unit of the record's SKU from reserved back to
// available. Off by default: refunds only transition the order status.
func WithInventoryRelease(ledger ports.StockLedger) CompensationOption {
	return func(h *CompensationHandler) {
		h.ledger = ledger
		h.release = ledger != nil
	}
}

// WithCompensationLogger sets the handler logger.
func WithCompensationLogger(logger *slog.Logger) CompensationOption {
	return func(h *CompensationHandler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewCompensationHandler wires the handler to a settlement collaborator.
func NewCompensationHandler(settlement ports.Settlement, opts ...CompensationOption) *CompensationHandler {
	h := &CompensationHandler{
		settlement: settlement,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Refund settles the refund and returns the record with status REFUNDED. A missing order id
// fails with ErrInvalidOrder, a missing connection id with ErrMissingConnection; nothing is
// attempted in either case.
func (h *CompensationHandler) Refund(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	if err := checkRequired(domain.StepRefund, order); err != nil {
		return domain.OrderContext{}, err
	}
	if h == nil || h.settlement == nil {
		return domain.OrderContext{}, errors.New("compensation handler not configured")
	}
	if err := h.settlement.Refund(ctx, order.OrderID, order.Amount); err != nil {
		return domain.OrderContext{}, fmt.Errorf("settle refund for order %s: %w", order.OrderID, err)
	}
	if h.release && order.SKU != "" {
		h.releaseUnit(ctx, order)
	}
	return order.WithStatus(domain.StatusRefunded), nil
}

// releaseUnit never fails the refund; ledger problems are logged for reconciliation.
func (h *CompensationHandler) releaseUnit(ctx context.Context, order domain.OrderContext) {
	record, err := h.ledger.ConditionalUpdate(ctx, order.SKU, domain.ReleaseOne, domain.RequireReservedUnit)
	if err != nil {
		h.logger.LogAttrs(ctx, slog.LevelWarn, "inventory release skipped",
			slog.String("order.id", order.OrderID), slog.String("sku", order.SKU), slog.String("error", err.Error()))
		return
	}
	h.logger.LogAttrs(ctx, slog.LevelInfo, "inventory released",
		slog.String("order.id", order.OrderID), slog.String("sku", order.SKU),
		slog.Int64("stock.available", record.Available), slog.Int64("stock.reserved", record.Reserved))
}

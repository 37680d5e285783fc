package memory

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.Settlement = (*Settlement)(nil)

// RefundRecord is one refund accepted by the placeholder settlement.
type RefundRecord struct {
	OrderID string
	Amount  json.RawMessage
}

// Settlement stands in for the payment gateway: it logs and remembers each refund.
type Settlement struct {
	mu      sync.Mutex
	refunds []RefundRecord
	logger  *slog.Logger
}

func NewSettlement(logger *slog.Logger) *Settlement {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Settlement{logger: logger}
}

func (s *Settlement) Refund(ctx context.Context, orderID string, amount json.RawMessage) error {
	s.mu.Lock()
	s.refunds = append(s.refunds, RefundRecord{OrderID: orderID, Amount: append(json.RawMessage(nil), amount...)})
	s.mu.Unlock()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "payment refunded",
		slog.String("order.id", orderID), slog.String("amount", string(amount)))
	return nil
}

// Refunds returns a copy of the refunds seen so far.
func (s *Settlement) Refunds() []RefundRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RefundRecord(nil), s.refunds...)
}

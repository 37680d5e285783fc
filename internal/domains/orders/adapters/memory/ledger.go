package memory

import (
	"context"
	"sync"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.StockLedger = (*Ledger)(nil)

// Ledger is an in-memory stock ledger. Each operation holds the mutex for its whole
// read-check-write so it behaves like a store-side conditional write.
type Ledger struct {
	mu      sync.Mutex
	records map[string]domain.StockRecord
}

func NewLedger() *Ledger {
	return &Ledger{records: map[string]domain.StockRecord{}}
}

func (l *Ledger) Get(_ context.Context, sku string) (*domain.StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[sku]
	if !ok {
		return nil, ports.ErrNotFound
	}
	return &record, nil
}

func (l *Ledger) PutIfAbsent(_ context.Context, record domain.StockRecord) (bool, error) {
	if err := record.Validate(); err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[record.SKU]; ok {
		return false, nil
	}
	l.records[record.SKU] = record
	return true, nil
}

func (l *Ledger) ConditionalUpdate(_ context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.records[sku]
	if !ok || !guard.Allows(record) {
		return nil, ports.ErrConditionFailed
	}
	updated := record.Apply(delta)
	l.records[sku] = updated
	return &updated, nil
}

// Seed overwrites a record; intended for tests and local fixtures.
func (l *Ledger) Seed(record domain.StockRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[record.SKU] = record
}

// Reset drops every record.
func (l *Ledger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = map[string]domain.StockRecord{}
}

package application

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

// countingLedger wraps the in-memory ledger, counts calls and can inject errors.
type countingLedger struct {
	*memory.Ledger

	mu        sync.Mutex
	gets      int
	puts      int
	created   int
	updates   int
	getErr    error
	updateErr error
}

func newCountingLedger() *countingLedger {
	return &countingLedger{Ledger: memory.NewLedger()}
}

func (l *countingLedger) Get(ctx context.Context, sku string) (*domain.StockRecord, error) {
	l.mu.Lock()
	l.gets++
	err := l.getErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.Ledger.Get(ctx, sku)
}

func (l *countingLedger) PutIfAbsent(ctx context.Context, record domain.StockRecord) (bool, error) {
	created, err := l.Ledger.PutIfAbsent(ctx, record)
	l.mu.Lock()
	l.puts++
	if created {
		l.created++
	}
	l.mu.Unlock()
	return created, err
}

func (l *countingLedger) ConditionalUpdate(ctx context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error) {
	l.mu.Lock()
	l.updates++
	err := l.updateErr
	l.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return l.Ledger.ConditionalUpdate(ctx, sku, delta, guard)
}

func (l *countingLedger) mutations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.puts + l.updates
}

type push struct {
	ConnectionID string
	Data         []byte
}

// recordingTransport remembers every push and fails with err when set.
type recordingTransport struct {
	mu     sync.Mutex
	pushes []push
	err    error
}

func (t *recordingTransport) PushToConnection(_ context.Context, connectionID string, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pushes = append(t.pushes, push{ConnectionID: connectionID, Data: append([]byte(nil), data...)})
	return t.err
}

func (t *recordingTransport) messages() []domain.StatusMessage {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.StatusMessage, 0, len(t.pushes))
	for _, p := range t.pushes {
		var msg domain.StatusMessage
		if err := json.Unmarshal(p.Data, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}

type failingSettlement struct {
	err   error
	calls int
}

func (s *failingSettlement) Refund(context.Context, string, json.RawMessage) error {
	s.calls++
	return s.err
}

var (
	_ ports.StockLedger = (*countingLedger)(nil)
	_ ports.Transport   = (*recordingTransport)(nil)
	_ ports.Settlement  = (*failingSettlement)(nil)
)

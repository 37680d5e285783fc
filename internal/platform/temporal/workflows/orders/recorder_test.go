package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

type pushRecorder struct {
	mu       sync.Mutex
	messages []domain.StatusMessage
}

func (p *pushRecorder) PushToConnection(_ context.Context, _ string, data []byte) error {
	var msg domain.StatusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	p.mu.Lock()
	p.messages = append(p.messages, msg)
	p.mu.Unlock()
	return nil
}

func (p *pushRecorder) statuses() []domain.Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.Status
	for _, msg := range p.messages {
		out = append(out, msg.Status)
	}
	return out
}

// replyLosingLedger commits the first conditional update and then reports a transport error,
// as a store whose reply was lost after the write landed.
type replyLosingLedger struct {
	*memory.Ledger
	mu    sync.Mutex
	calls int
}

func (l *replyLosingLedger) ConditionalUpdate(ctx context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error) {
	l.mu.Lock()
	l.calls++
	first := l.calls == 1
	l.mu.Unlock()
	record, err := l.Ledger.ConditionalUpdate(ctx, sku, delta, guard)
	if err == nil && first {
		return nil, errors.New("connection reset after commit")
	}
	return record, err
}

func (l *replyLosingLedger) updateCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

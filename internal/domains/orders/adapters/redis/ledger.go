package redis

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.StockLedger = (*Ledger)(nil)

const defaultStockPrefix = "stock:"

// putIfAbsentScript creates the hash only when the key does not exist.
var putIfAbsentScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'sku', ARGV[1], 'available', ARGV[2], 'reserved', ARGV[3])
return 1
`)

// conditionalUpdateScript checks the guard and applies the delta atomically. A missing key
// or a failed guard returns false, which the client surfaces as redis.Nil. A missing counter
// field reads as 0, matching HINCRBY.
var conditionalUpdateScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return false
end
local available = tonumber(redis.call('HGET', KEYS[1], 'available')) or 0
local reserved = tonumber(redis.call('HGET', KEYS[1], 'reserved')) or 0
if available < tonumber(ARGV[3]) or reserved < tonumber(ARGV[4]) then
  return false
end
available = redis.call('HINCRBY', KEYS[1], 'available', ARGV[1])
reserved = redis.call('HINCRBY', KEYS[1], 'reserved', ARGV[2])
return {available, reserved}
`)

// Ledger keeps one hash per SKU.
type Ledger struct {
	client goredis.UniversalClient
	prefix string
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithKeyPrefix namespaces the ledger keys.
func WithKeyPrefix(prefix string) LedgerOption {
	return func(l *Ledger) {
		if prefix != "" {
			l.prefix = prefix
		}
	}
}

// NewLedger wires a Redis-backed ledger. Caller manages client lifecycle.
func NewLedger(client goredis.UniversalClient, opts ...LedgerOption) *Ledger {
	ledger := &Ledger{client: client, prefix: defaultStockPrefix}
	for _, opt := range opts {
		if opt != nil {
			opt(ledger)
		}
	}
	return ledger
}

type stockHash struct {
	SKU       string `redis:"sku"`
	Available int64  `redis:"available"`
	Reserved  int64  `redis:"reserved"`
}

// Get loads a record by SKU.
func (l *Ledger) Get(ctx context.Context, sku string) (*domain.StockRecord, error) {
	if err := l.ensureClient(); err != nil {
		return nil, err
	}
	cmd := l.client.HGetAll(ctx, l.key(sku))
	values, err := cmd.Result()
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, ports.ErrNotFound
	}
	var hash stockHash
	if err := cmd.Scan(&hash); err != nil {
		return nil, fmt.Errorf("decode stock %s: %w", sku, err)
	}
	return &domain.StockRecord{SKU: sku, Available: hash.Available, Reserved: hash.Reserved}, nil
}

// PutIfAbsent seeds the record unless the SKU already has a hash.
func (l *Ledger) PutIfAbsent(ctx context.Context, record domain.StockRecord) (bool, error) {
	if err := l.ensureClient(); err != nil {
		return false, err
	}
	if err := record.Validate(); err != nil {
		return false, err
	}
	created, err := putIfAbsentScript.Run(ctx, l.client, []string{l.key(record.SKU)},
		record.SKU, record.Available, record.Reserved).Int64()
	if err != nil {
		return false, err
	}
	return created == 1, nil
}

// ConditionalUpdate applies delta when the guard holds, inside one script execution.
func (l *Ledger) ConditionalUpdate(ctx context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error) {
	if err := l.ensureClient(); err != nil {
		return nil, err
	}
	values, err := conditionalUpdateScript.Run(ctx, l.client, []string{l.key(sku)},
		delta.Available, delta.Reserved, guard.MinAvailable, guard.MinReserved).Int64Slice()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ports.ErrConditionFailed
		}
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected stock script reply for %s: %v", sku, values)
	}
	return &domain.StockRecord{SKU: sku, Available: values[0], Reserved: values[1]}, nil
}

func (l *Ledger) key(sku string) string {
	return l.prefix + sku
}

func (l *Ledger) ensureClient() error {
	if l == nil || l.client == nil {
		return errors.New("redis stock ledger not configured")
	}
	return nil
}

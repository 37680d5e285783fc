package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.ConnectionRegistry = (*Registry)(nil)

const (
	defaultConnectionPrefix = "connection:"
	defaultConnectionIndex  = "connections:by_connected_at"
	defaultConnectionTTL    = 2 * time.Hour
)

// Registry stores one key per connection, expiring after a TTL, plus a sorted set indexed
// by connect time so stale entries can be purged in bulk.
type Registry struct {
	client goredis.UniversalClient
	prefix string
	index  string
	ttl    time.Duration
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithConnectionTTL sets how long a connection key lives without being refreshed.
func WithConnectionTTL(ttl time.Duration) RegistryOption {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithRegistryPrefix namespaces the registry keys.
func WithRegistryPrefix(prefix string) RegistryOption {
	return func(r *Registry) {
		if prefix != "" {
			r.prefix = prefix + defaultConnectionPrefix
			r.index = prefix + defaultConnectionIndex
		}
	}
}

// NewRegistry wires a Redis-backed connection registry. Caller manages client lifecycle.
func NewRegistry(client goredis.UniversalClient, opts ...RegistryOption) *Registry {
	registry := &Registry{
		client: client,
		prefix: defaultConnectionPrefix,
		index:  defaultConnectionIndex,
		ttl:    defaultConnectionTTL,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(registry)
		}
	}
	return registry
}

// PutConnection records the connection and indexes it by connect time.
func (r *Registry) PutConnection(ctx context.Context, record domain.ConnectionRecord) error {
	if err := r.ensureClient(); err != nil {
		return err
	}
	if record.ConnectionID == "" {
		return domain.ErrEmptyConnectionID
	}
	connectedAt := record.ConnectedAt.UTC().UnixMilli()
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, r.key(record.ConnectionID), connectedAt, r.ttl)
		pipe.ZAdd(ctx, r.index, goredis.Z{Score: float64(connectedAt), Member: record.ConnectionID})
		return nil
	})
	return err
}

// GetConnection reads a connection by id.
func (r *Registry) GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionRecord, error) {
	if err := r.ensureClient(); err != nil {
		return nil, err
	}
	raw, err := r.client.Get(ctx, r.key(connectionID)).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ports.ErrConnectionNotFound
		}
		return nil, err
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, err
	}
	return &domain.ConnectionRecord{ConnectionID: connectionID, ConnectedAt: time.UnixMilli(millis).UTC()}, nil
}

// DeleteConnection removes the connection key and its index entry.
func (r *Registry) DeleteConnection(ctx context.Context, connectionID string) error {
	if err := r.ensureClient(); err != nil {
		return err
	}
	_, err := r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, r.key(connectionID))
		pipe.ZRem(ctx, r.index, connectionID)
		return nil
	})
	return err
}

// PurgeStale removes every connection indexed at or before cutoff.
func (r *Registry) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.ensureClient(); err != nil {
		return 0, err
	}
	maxScore := strconv.FormatInt(cutoff.UTC().UnixMilli(), 10)
	ids, err := r.client.ZRangeByScore(ctx, r.index, &goredis.ZRangeBy{Min: "-inf", Max: maxScore}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids))
	members := make([]any, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, r.key(id))
		members = append(members, id)
	}
	_, err = r.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.index, members...)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int64(len(ids)), nil
}

func (r *Registry) key(connectionID string) string {
	return r.prefix + connectionID
}

func (r *Registry) ensureClient() error {
	if r == nil || r.client == nil {
		return errors.New("redis connection registry not configured")
	}
	return nil
}

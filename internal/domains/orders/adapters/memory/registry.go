package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.ConnectionRegistry = (*Registry)(nil)

// Registry keeps connection records in memory.
type Registry struct {
	mu          sync.RWMutex
	connections map[string]domain.ConnectionRecord
}

func NewRegistry() *Registry {
	return &Registry{connections: map[string]domain.ConnectionRecord{}}
}

func (r *Registry) PutConnection(_ context.Context, record domain.ConnectionRecord) error {
	if record.ConnectionID == "" {
		return domain.ErrEmptyConnectionID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connections[record.ConnectionID] = record
	return nil
}

func (r *Registry) GetConnection(_ context.Context, connectionID string) (*domain.ConnectionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.connections[connectionID]
	if !ok {
		return nil, ports.ErrConnectionNotFound
	}
	return &record, nil
}

func (r *Registry) DeleteConnection(_ context.Context, connectionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.connections, connectionID)
	return nil
}

func (r *Registry) PurgeStale(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var purged int64
	for id, record := range r.connections {
		if !record.ConnectedAt.After(cutoff) {
			delete(r.connections, id)
			purged++
		}
	}
	return purged, nil
}

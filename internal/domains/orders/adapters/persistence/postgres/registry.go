package postgres

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

var _ ports.ConnectionRegistry = (*Registry)(nil)

// Registry persists client connections in PostgreSQL.
type Registry struct {
	db *gorm.DB
}

// NewRegistry wires a PostgreSQL-backed connection registry. Caller manages DB lifecycle.
func NewRegistry(db *gorm.DB) *Registry {
	registry := &Registry{db: db}
	if db != nil {
		_ = db.AutoMigrate(&connectionRecord{})
	}
	return registry
}

type connectionRecord struct {
	ConnectionID string    `gorm:"primaryKey;column:connection_id;size:128"`
	ConnectedAt  time.Time `gorm:"column:connected_at;index"`
}

func (connectionRecord) TableName() string { return "connections" }

// PutConnection records a connection, refreshing connected_at when it already exists.
func (r *Registry) PutConnection(ctx context.Context, record domain.ConnectionRecord) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	if record.ConnectionID == "" {
		return domain.ErrEmptyConnectionID
	}
	row := connectionRecord{ConnectionID: record.ConnectionID, ConnectedAt: record.ConnectedAt.UTC()}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "connection_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"connected_at"}),
		}).Create(&row).Error
}

// GetConnection fetches a connection by id.
func (r *Registry) GetConnection(ctx context.Context, connectionID string) (*domain.ConnectionRecord, error) {
	if err := r.ensureDB(); err != nil {
		return nil, err
	}
	var row connectionRecord
	if err := r.db.WithContext(ctx).First(&row, "connection_id = ?", connectionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrConnectionNotFound
		}
		return nil, err
	}
	return &domain.ConnectionRecord{ConnectionID: row.ConnectionID, ConnectedAt: row.ConnectedAt.UTC()}, nil
}

// DeleteConnection removes a connection; deleting an unknown id is not an error.
func (r *Registry) DeleteConnection(ctx context.Context, connectionID string) error {
	if err := r.ensureDB(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Delete(&connectionRecord{}, "connection_id = ?", connectionID).Error
}

// PurgeStale removes connections recorded at or before cutoff.
func (r *Registry) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := r.ensureDB(); err != nil {
		return 0, err
	}
	result := r.db.WithContext(ctx).Where("connected_at <= ?", cutoff.UTC()).Delete(&connectionRecord{})
	return result.RowsAffected, result.Error
}

func (r *Registry) ensureDB() error {
	if r == nil || r.db == nil {
		return errors.New("postgres connection registry not configured")
	}
	return nil
}

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

var _ ports.StockLedger = (*Ledger)(nil)

// Ledger keeps stock records in PostgreSQL using GORM. Every mutation is a single
// guarded statement so concurrent workers never oversell.
type Ledger struct {
	db *gorm.DB
}

// NewLedger wires a PostgreSQL-backed ledger. Caller manages DB lifecycle.
func NewLedger(db *gorm.DB) *Ledger {
	ledger := &Ledger{db: db}
	if db != nil {
		_ = db.AutoMigrate(&stockRecord{})
	}
	return ledger
}

// stockRecord maps a ledger entry to a relational table.
type stockRecord struct {
	SKU       string    `gorm:"primaryKey;column:sku;size:128"`
	Available int64     `gorm:"column:available;not null;check:chk_stock_available,available >= 0"`
	Reserved  int64     `gorm:"column:reserved;not null;check:chk_stock_reserved,reserved >= 0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`
}

func (stockRecord) TableName() string { return "stock_records" }

// Get fetches a record by SKU.
func (l *Ledger) Get(ctx context.Context, sku string) (*domain.StockRecord, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var record stockRecord
	if err := l.db.WithContext(ctx).First(&record, "sku = ?", sku).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}
	return record.toDomain(), nil
}

// PutIfAbsent inserts the record unless the SKU already exists.
func (l *Ledger) PutIfAbsent(ctx context.Context, record domain.StockRecord) (bool, error) {
	if err := l.ensureDB(); err != nil {
		return false, err
	}
	if err := record.Validate(); err != nil {
		return false, err
	}
	row := toStockRecord(record)
	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ConditionalUpdate applies delta in one UPDATE whose WHERE clause carries the guard.
func (l *Ledger) ConditionalUpdate(ctx context.Context, sku string, delta domain.StockDelta, guard domain.StockGuard) (*domain.StockRecord, error) {
	if err := l.ensureDB(); err != nil {
		return nil, err
	}
	var updated stockRecord
	result := l.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("sku = ? AND available >= ? AND reserved >= ?", sku, guard.MinAvailable, guard.MinReserved).
		Updates(map[string]any{
			"available":  gorm.Expr("available + ?", delta.Available),
			"reserved":   gorm.Expr("reserved + ?", delta.Reserved),
			"updated_at": gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, ports.ErrConditionFailed
	}
	return updated.toDomain(), nil
}

func (l *Ledger) ensureDB() error {
	if l == nil || l.db == nil {
		return errors.New("postgres stock ledger not configured")
	}
	return nil
}

func toStockRecord(record domain.StockRecord) stockRecord {
	return stockRecord{SKU: record.SKU, Available: record.Available, Reserved: record.Reserved}
}

func (r stockRecord) toDomain() *domain.StockRecord {
	return &domain.StockRecord{SKU: r.SKU, Available: r.Available, Reserved: r.Reserved}
}

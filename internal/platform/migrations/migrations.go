package migrations

import (
	"time"

	"gorm.io/gorm"
)

// Run applies the schema used by the order saga. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&stockRecord{},
		&connectionRecord{},
	)
}

// Stock schema mirrors the orders Postgres ledger.
type stockRecord struct {
	SKU       string    `gorm:"primaryKey;column:sku;size:128"`
	Available int64     `gorm:"column:available;not null;check:chk_stock_available,available >= 0"`
	Reserved  int64     `gorm:"column:reserved;not null;check:chk_stock_reserved,reserved >= 0"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;index"`
}

func (stockRecord) TableName() string { return "stock_records" }

// Connection schema mirrors the orders Postgres registry.
type connectionRecord struct {
	ConnectionID string    `gorm:"primaryKey;column:connection_id;size:128"`
	ConnectedAt  time.Time `gorm:"column:connected_at;index"`
}

func (connectionRecord) TableName() string { return "connections" }

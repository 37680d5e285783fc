package domain

import (
	"errors"
	"strings"
)

// DefaultInitialStock seeds the available count of a SKU seen for the first time.
const DefaultInitialStock int64 = 5

var (
	ErrEmptySKU      = errors.New("sku must not be empty")
	ErrNegativeStock = errors.New("stock counts must not be negative")
)

// StockRecord is the ledger entry of one SKU.
type StockRecord struct {
	SKU       string `json:"sku"`
	Available int64  `json:"available"`
	Reserved  int64  `json:"reserved"`
}

// NewStockRecord builds a freshly seeded record with nothing reserved.
func NewStockRecord(sku string, available int64) (StockRecord, error) {
	record := StockRecord{SKU: strings.TrimSpace(sku), Available: available}
	if err := record.Validate(); err != nil {
		return StockRecord{}, err
	}
	return record, nil
}

// Validate enforces the record invariants.
func (r StockRecord) Validate() error {
	if r.SKU == "" {
		return ErrEmptySKU
	}
	if r.Available < 0 || r.Reserved < 0 {
		return ErrNegativeStock
	}
	return nil
}

// Total is conserved by a reserve/release pair.
func (r StockRecord) Total() int64 {
	return r.Available + r.Reserved
}

// Snapshot returns the counts reported back to the saga.
func (r StockRecord) Snapshot() StockSnapshot {
	return StockSnapshot{Available: r.Available, Reserved: r.Reserved}
}

// Apply returns the record after the delta.
func (r StockRecord) Apply(delta StockDelta) StockRecord {
	r.Available += delta.Available
	r.Reserved += delta.Reserved
	return r
}

// StockSnapshot is the post-mutation view of a record.
type StockSnapshot struct {
	Available int64 `json:"available"`
	Reserved  int64 `json:"reserved"`
}

// StockDelta is added to a record by a conditional update.
type StockDelta struct {
	Available int64
	Reserved  int64
}

var (
	// ReserveOne moves one unit from available to reserved.
	ReserveOne = StockDelta{Available: -1, Reserved: 1}
	// ReleaseOne moves one unit from reserved back to available.
	ReleaseOne = StockDelta{Available: 1, Reserved: -1}
)

// StockGuard must hold at the moment a conditional update is applied.
type StockGuard struct {
	MinAvailable int64
	MinReserved  int64
}

var (
	// RequireAvailableUnit guards a reservation.
	RequireAvailableUnit = StockGuard{MinAvailable: 1}
	// RequireReservedUnit guards a release.
	RequireReservedUnit = StockGuard{MinReserved: 1}
)

// Allows reports whether the guard holds for the record.
func (g StockGuard) Allows(r StockRecord) bool {
	return r.Available >= g.MinAvailable && r.Reserved >= g.MinReserved
}

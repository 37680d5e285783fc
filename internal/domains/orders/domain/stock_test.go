package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStockRecord(t *testing.T) {
	record, err := NewStockRecord(" X1 ", DefaultInitialStock)
	require.NoError(t, err)
	require.Equal(t, StockRecord{SKU: "X1", Available: 5, Reserved: 0}, record)

	_, err = NewStockRecord("", 5)
	require.ErrorIs(t, err, ErrEmptySKU)

	_, err = NewStockRecord("X1", -1)
	require.ErrorIs(t, err, ErrNegativeStock)
}

func TestReserveAndReleaseConserveTotal(t *testing.T) {
	record := StockRecord{SKU: "X1", Available: 5}
	require.True(t, RequireAvailableUnit.Allows(record))
	require.False(t, RequireReservedUnit.Allows(record))

	reserved := record.Apply(ReserveOne)
	require.Equal(t, StockSnapshot{Available: 4, Reserved: 1}, reserved.Snapshot())
	require.True(t, RequireReservedUnit.Allows(reserved))

	released := reserved.Apply(ReleaseOne)
	require.Equal(t, record, released)
	require.Equal(t, record.Total(), reserved.Total())
}

func TestGuardRejectsEmptyStock(t *testing.T) {
	require.False(t, RequireAvailableUnit.Allows(StockRecord{SKU: "X2"}))
}

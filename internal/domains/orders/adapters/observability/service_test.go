package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

type staticTransport struct{ err error }

func (s staticTransport) PushToConnection(context.Context, string, []byte) error { return s.err }

func counterTotals(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func TestSteps_RecordsStepMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	meter := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)).Meter("test")

	transport := NewTransport(staticTransport{}, WithMeter(meter))
	svc := application.NewService(
		application.NewReservationEngine(memory.NewLedger()),
		application.NewCompensationHandler(memory.NewSettlement(nil)),
		application.NewNotificationDispatcher(transport),
	)
	steps := New(svc, WithMeter(meter))
	ctx := context.Background()

	reserved, err := steps.Reserve(ctx, domain.OrderContext{OrderID: "O1", ConnectionID: "C1", SKU: "X1"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReserved, reserved.Status)

	invalid, err := steps.Reserve(ctx, domain.OrderContext{OrderID: "O2", ConnectionID: "C2"})
	require.NoError(t, err)
	require.Equal(t, domain.StatusInvalidInput, invalid.Status)

	_, err = steps.Validate(ctx, domain.OrderContext{ConnectionID: "C3"})
	require.ErrorIs(t, err, application.ErrInvalidOrder)

	_, err = steps.Refund(ctx, domain.OrderContext{OrderID: "O4", ConnectionID: "C4"})
	require.NoError(t, err)

	totals := counterTotals(t, reader)
	require.Equal(t, int64(2), totals["orders.steps.reservations"])
	require.Equal(t, int64(2), totals["orders.steps.invalid_input"])
	require.Equal(t, int64(1), totals["orders.steps.refunds"])
	require.Equal(t, int64(1), totals["orders.steps.notifications"])
}

func TestTransport_PassesErrorsThrough(t *testing.T) {
	transport := NewTransport(staticTransport{err: ports.ErrConnectionGone})
	err := transport.PushToConnection(context.Background(), "C1", []byte(`{}`))
	require.ErrorIs(t, err, ports.ErrConnectionGone)
}

package backends

import (
	"log/slog"
	"time"

	"github.com/Apurer/go-order-saga/internal/domains/orders/adapters/memory"
	ordersobs "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/observability"
	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
	platformobservability "github.com/Apurer/go-order-saga/internal/platform/observability"
)

// StepSettings tunes the saga steps built on top of the backends.
type StepSettings struct {
	InitialStock    int64
	PushTimeout     time.Duration
	ReleaseOnRefund bool
}

// Steps assembles the instrumented saga steps over the ledger and registry, pushing status
// messages through transport.
func (b *Backends) Steps(transport ports.Transport, settings StepSettings, instruments *platformobservability.Instruments) ports.Steps {
	logger := instruments.Component("orders")
	tracer := instruments.Tracer("internal.orders.application")
	meter := instruments.Meter("internal.orders.application")

	transport = ordersobs.NewTransport(transport,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(tracer),
		ordersobs.WithMeter(meter),
	)
	engine := application.NewReservationEngine(b.Ledger, application.WithInitialStock(settings.InitialStock))
	compensationOpts := []application.CompensationOption{application.WithCompensationLogger(logger)}
	if settings.ReleaseOnRefund {
		compensationOpts = append(compensationOpts, application.WithInventoryRelease(b.Ledger))
	}
	compensation := application.NewCompensationHandler(memory.NewSettlement(logger), compensationOpts...)
	dispatcher := application.NewNotificationDispatcher(transport,
		application.WithConnectionReader(b.Registry),
		application.WithDispatcherLogger(logger),
	)
	core := application.NewService(engine, compensation, dispatcher,
		application.WithLogger(logger),
		application.WithPushTimeout(settings.PushTimeout),
	)
	return ordersobs.New(core,
		ordersobs.WithLogger(logger.With(slog.String("layer", "steps"))),
		ordersobs.WithTracer(tracer),
		ordersobs.WithMeter(meter),
	)
}

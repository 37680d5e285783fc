package observability

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

// Transport traces each push and counts delivery outcomes.
type Transport struct {
	inner   ports.Transport
	tracer  trace.Tracer
	metrics stepMetrics
}

// NewTransport wraps a transport.
func NewTransport(inner ports.Transport, opts ...Option) ports.Transport {
	o := buildOptions(opts)
	return &Transport{inner: inner, tracer: o.tracer, metrics: newStepMetrics(o.meter)}
}

func (t *Transport) PushToConnection(ctx context.Context, connectionID string, data []byte) error {
	ctx, span := t.tracer.Start(ctx, "Transport.PushToConnection", trace.WithAttributes(
		attribute.String("connection.id", connectionID),
		attribute.Int("message.bytes", len(data)),
	))
	defer span.End()

	err := t.inner.PushToConnection(ctx, connectionID, data)
	outcome := application.OutcomeDelivered
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrConnectionGone):
		outcome = application.OutcomeConnectionGone
	default:
		outcome = application.OutcomeDeliveryFailed
		span.RecordError(err)
	}
	span.SetAttributes(attribute.String("notify.outcome", string(outcome)))
	t.metrics.recordNotification(ctx, outcome)
	return err
}

var _ ports.Transport = (*Transport)(nil)

package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/go-order-saga/internal/domains/orders/application"
	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/go-order-saga/internal/domains/orders/adapters/observability"

// Steps decorates the saga steps with tracing, logging and metrics.
type Steps struct {
	inner   ports.Steps
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics stepMetrics
}

type Option func(*options)

type options struct {
	tracer trace.Tracer
	logger *slog.Logger
	meter  metric.Meter
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

func buildOptions(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.tracer == nil {
		o.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// New wraps the saga steps.
func New(inner ports.Steps, opts ...Option) ports.Steps {
	o := buildOptions(opts)
	return &Steps{
		inner:   inner,
		tracer:  o.tracer,
		logger:  o.logger,
		metrics: newStepMetrics(o.meter),
	}
}

func (s *Steps) Validate(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return s.run(ctx, domain.StepValidate, order, s.inner.Validate)
}

func (s *Steps) Reserve(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	out, err := s.run(ctx, domain.StepReserve, order, s.inner.Reserve)
	if err == nil {
		s.metrics.recordReservation(ctx, out.Status)
	}
	return out, err
}

func (s *Steps) Notify(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	return s.run(ctx, domain.StepNotify, order, s.inner.Notify)
}

func (s *Steps) Refund(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	out, err := s.run(ctx, domain.StepRefund, order, s.inner.Refund)
	if err == nil {
		s.metrics.recordRefund(ctx)
	}
	return out, err
}

type stepFunc func(context.Context, domain.OrderContext) (domain.OrderContext, error)

func (s *Steps) run(ctx context.Context, step domain.Step, order domain.OrderContext, fn stepFunc) (domain.OrderContext, error) {
	ctx, span := s.tracer.Start(ctx, "OrderSteps."+string(step), trace.WithAttributes(
		attribute.String("saga.step", string(step)),
		attribute.String("order.id", order.OrderID),
		attribute.String("order.sku", order.SKU),
		attribute.String("order.status", string(order.Status)),
	))
	defer span.End()

	out, err := fn(ctx, order)
	if err != nil {
		if stepErr, ok := application.AsStepError(err); ok {
			s.metrics.recordInvalidInput(ctx, step)
			span.SetAttributes(attribute.String("error.code", stepErr.Code()))
		}
		return out, s.handleError(ctx, span, err, "order step failed",
			slog.String("saga.step", string(step)), slog.String("order.id", order.OrderID))
	}
	if out.Status == domain.StatusInvalidInput && order.Status != domain.StatusInvalidInput {
		s.metrics.recordInvalidInput(ctx, step)
	}
	span.SetAttributes(attribute.String("order.result_status", string(out.Status)))
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order step completed",
		slog.String("saga.step", string(step)),
		slog.String("order.id", out.OrderID),
		slog.String("order.status", string(out.Status)))
	return out, nil
}

func (s *Steps) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	level := slog.LevelError
	var stepErr *application.StepError
	if errors.As(err, &stepErr) {
		level = slog.LevelWarn
	}
	attrs = append(attrs, slog.String("error", err.Error()))
	s.logger.LogAttrs(ctx, level, msg, attrs...)
	return err
}

type stepMetrics struct {
	reservations  metric.Int64Counter
	notifications metric.Int64Counter
	refunds       metric.Int64Counter
	invalidInput  metric.Int64Counter
}

func newStepMetrics(m metric.Meter) stepMetrics {
	if m == nil {
		return stepMetrics{}
	}
	reservations, _ := m.Int64Counter("orders.steps.reservations", metric.WithDescription("Reservation decisions by resulting status"))
	notifications, _ := m.Int64Counter("orders.steps.notifications", metric.WithDescription("Status pushes by delivery outcome"))
	refunds, _ := m.Int64Counter("orders.steps.refunds", metric.WithDescription("Orders refunded"))
	invalidInput, _ := m.Int64Counter("orders.steps.invalid_input", metric.WithDescription("Records rejected for missing fields"))
	return stepMetrics{reservations: reservations, notifications: notifications, refunds: refunds, invalidInput: invalidInput}
}

func (m stepMetrics) recordReservation(ctx context.Context, status domain.Status) {
	if m.reservations != nil {
		m.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("order.status", string(status))))
	}
}

func (m stepMetrics) recordNotification(ctx context.Context, outcome application.Outcome) {
	if m.notifications != nil {
		m.notifications.Add(ctx, 1, metric.WithAttributes(attribute.String("notify.outcome", string(outcome))))
	}
}

func (m stepMetrics) recordRefund(ctx context.Context) {
	if m.refunds != nil {
		m.refunds.Add(ctx, 1)
	}
}

func (m stepMetrics) recordInvalidInput(ctx context.Context, step domain.Step) {
	if m.invalidInput != nil {
		m.invalidInput.Add(ctx, 1, metric.WithAttributes(attribute.String("saga.step", string(step))))
	}
}

var _ ports.Steps = (*Steps)(nil)

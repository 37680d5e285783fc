package application

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

const defaultPushTimeout = 3 * time.Second

// Service implements the saga steps on top of the reservation engine, the compensation
// handler and the notification dispatcher.
type Service struct {
	engine       *ReservationEngine
	compensation *CompensationHandler
	dispatcher   *NotificationDispatcher
	logger       *slog.Logger
	pushTimeout  time.Duration
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithPushTimeout bounds each status push so a slow client cannot hold a step open.
func WithPushTimeout(timeout time.Duration) ServiceOption {
	return func(s *Service) {
		if timeout > 0 {
			s.pushTimeout = timeout
		}
	}
}

// NewService wires the steps.
func NewService(engine *ReservationEngine, compensation *CompensationHandler, dispatcher *NotificationDispatcher, opts ...ServiceOption) *Service {
	s := &Service{
		engine:       engine,
		compensation: compensation,
		dispatcher:   dispatcher,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		pushTimeout:  defaultPushTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Validate checks the record carries an order id and a connection id and marks it VALID.
func (s *Service) Validate(_ context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	if err := checkRequired(domain.StepValidate, order); err != nil {
		return rejectInput(domain.StepValidate, order, err)
	}
	return order.WithStatus(domain.StatusValid), nil
}

// Reserve runs the reservation engine and delivers the resulting status pushes. Push
// failures are logged and never change the reservation decision.
func (s *Service) Reserve(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	if err := checkRequired(domain.StepReserve, order); err != nil {
		return rejectInput(domain.StepReserve, order, err)
	}
	reservation, err := s.engine.Reserve(ctx, order.SKU, order.OrderID)
	if err != nil {
		if _, ok := AsStepError(err); ok {
			return rejectInput(domain.StepReserve, order, err)
		}
		return domain.OrderContext{}, err
	}
	s.deliver(ctx, order.ConnectionID, reservation.Messages)

	out := order.WithStatus(reservation.Status)
	out.InventorySnapshot = reservation.Snapshot
	return out, nil
}

// Notify pushes the record's current status to its connection and returns the record as is.
func (s *Service) Notify(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	if err := checkRequired(domain.StepNotify, order); err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "notify skipped, record incomplete",
			slog.String("order.id", order.OrderID), slog.String("error", err.Error()))
		return rejectInput(domain.StepNotify, order, err)
	}
	s.deliver(ctx, order.ConnectionID, []domain.StatusMessage{{
		Type:    domain.MessageTypeOrderStatus,
		OrderID: order.OrderID,
		Status:  order.Status,
	}})
	return order.Clone(), nil
}

// Refund delegates to the compensation handler.
func (s *Service) Refund(ctx context.Context, order domain.OrderContext) (domain.OrderContext, error) {
	refunded, err := s.compensation.Refund(ctx, order)
	if err != nil {
		if _, ok := AsStepError(err); ok {
			return rejectInput(domain.StepRefund, order, err)
		}
		return domain.OrderContext{}, err
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, "order refunded", slog.String("order.id", refunded.OrderID))
	return refunded, nil
}

// deliver performs the pushes in order; outcomes are only logged.
func (s *Service) deliver(ctx context.Context, connectionID string, messages []domain.StatusMessage) {
	if s.dispatcher == nil {
		return
	}
	for _, message := range messages {
		pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
		outcome, err := s.dispatcher.Notify(pushCtx, connectionID, message)
		cancel()
		if err != nil {
			s.logger.LogAttrs(ctx, slog.LevelError, "status push failed",
				slog.String("order.id", message.OrderID),
				slog.String("order.status", string(message.Status)),
				slog.String("notify.outcome", string(outcome)),
				slog.String("error", err.Error()))
		}
	}
}

// rejectInput applies the step's invalid-input policy to a StepError.
func rejectInput(step domain.Step, order domain.OrderContext, err error) (domain.OrderContext, error) {
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		return domain.OrderContext{}, err
	}
	switch domain.PolicyFor(step) {
	case domain.PolicyStatus:
		return order.WithStatus(domain.StatusInvalidInput), nil
	case domain.PolicyPassThrough:
		return order.Clone(), nil
	default:
		return domain.OrderContext{}, err
	}
}

var _ ports.Steps = (*Service)(nil)

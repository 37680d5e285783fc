package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Apurer/go-order-saga/internal/domains/orders/ports"
)

// Outcome reports what happened to one push.
type Outcome string

const (
	OutcomeDelivered      Outcome = "DELIVERED"
	OutcomeConnectionGone Outcome = "CONNECTION_GONE"
	OutcomeDeliveryFailed Outcome = "DELIVERY_FAILED"
)

// NotificationDispatcher pushes status messages to a single client connection.
type NotificationDispatcher struct {
	transport   ports.Transport
	connections ports.ConnectionReader
	logger      *slog.Logger
	now         func() time.Time
}

// DispatcherOption configures a NotificationDispatcher.
type DispatcherOption func(*NotificationDispatcher)

// WithConnectionReader lets the dispatcher enrich gone-connection logs with registry metadata.
func WithConnectionReader(reader ports.ConnectionReader) DispatcherOption {
	return func(d *NotificationDispatcher) {
		d.connections = reader
	}
}

// WithDispatcherLogger sets the dispatcher logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *NotificationDispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewNotificationDispatcher wires the dispatcher to a transport.
func NewNotificationDispatcher(transport ports.Transport, opts ...DispatcherOption) *NotificationDispatcher {
	d := &NotificationDispatcher{
		transport: transport,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Notify serializes message and pushes it to connectionID. A gone connection is logged and
// reported as OutcomeConnectionGone with a nil error; any other failure comes back as
// OutcomeDeliveryFailed wrapping ErrDeliveryFailed.
func (d *NotificationDispatcher) Notify(ctx context.Context, connectionID string, message any) (Outcome, error) {
	if d == nil || d.transport == nil {
		return OutcomeDeliveryFailed, fmt.Errorf("%w: dispatcher not configured", ErrDeliveryFailed)
	}
	data, err := json.Marshal(message)
	if err != nil {
		return OutcomeDeliveryFailed, fmt.Errorf("%w: encode message: %w", ErrDeliveryFailed, err)
	}
	err = d.transport.PushToConnection(ctx, connectionID, data)
	switch {
	case err == nil:
		d.logger.LogAttrs(ctx, slog.LevelInfo, "status pushed",
			slog.String("connection.id", connectionID), slog.Int("bytes", len(data)))
		return OutcomeDelivered, nil
	case errors.Is(err, ports.ErrConnectionGone):
		d.logGone(ctx, connectionID)
		return OutcomeConnectionGone, nil
	default:
		return OutcomeDeliveryFailed, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
	}
}

func (d *NotificationDispatcher) logGone(ctx context.Context, connectionID string) {
	attrs := []slog.Attr{slog.String("connection.id", connectionID)}
	if d.connections != nil {
		record, err := d.connections.GetConnection(ctx, connectionID)
		if err == nil && record != nil {
			attrs = append(attrs,
				slog.Time("connection.connected_at", record.ConnectedAt),
				slog.Duration("connection.age", d.now().Sub(record.ConnectedAt)))
		}
	}
	d.logger.LogAttrs(ctx, slog.LevelWarn, "connection gone, status not delivered", attrs...)
}

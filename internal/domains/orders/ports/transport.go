package ports

import (
	"context"
	"errors"
)

// ErrConnectionGone signals the addressed endpoint no longer exists.
var ErrConnectionGone = errors.New("connection gone")

// Transport delivers bytes to one client connection.
type Transport interface {
	PushToConnection(ctx context.Context, connectionID string, data []byte) error
}

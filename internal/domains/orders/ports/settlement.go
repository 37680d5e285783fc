package ports

import (
	"context"
	"encoding/json"
)

// Settlement performs the external money movement of a compensation.
type Settlement interface {
	Refund(ctx context.Context, orderID string, amount json.RawMessage) error
}

package domain

import (
	"errors"
	"strings"
	"time"
)

// MessageTypeOrderStatus tags the status pushes sent by the notify step.
const MessageTypeOrderStatus = "ORDER_STATUS"

// StatusMessage is the payload pushed to a client connection.
type StatusMessage struct {
	Type              string         `json:"type,omitempty"`
	OrderID           string         `json:"orderId"`
	Status            Status         `json:"status"`
	SKU               string         `json:"sku,omitempty"`
	InventorySnapshot *StockSnapshot `json:"inventorySnapshot,omitempty"`
}

var ErrEmptyConnectionID = errors.New("connection id must not be empty")

// ConnectionRecord is the registry entry written when a client connects.
type ConnectionRecord struct {
	ConnectionID string    `json:"connectionId"`
	ConnectedAt  time.Time `json:"connectedAt"`
}

// NewConnectionRecord validates and builds a registry entry.
func NewConnectionRecord(connectionID string, connectedAt time.Time) (ConnectionRecord, error) {
	connectionID = strings.TrimSpace(connectionID)
	if connectionID == "" {
		return ConnectionRecord{}, ErrEmptyConnectionID
	}
	return ConnectionRecord{ConnectionID: connectionID, ConnectedAt: connectedAt.UTC()}, nil
}

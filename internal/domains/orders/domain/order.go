package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"maps"
)

// Status is the wire-level saga status carried on an OrderContext. Values are case-sensitive.
type Status string

const (
	StatusValid        Status = "VALID"
	StatusInvalidInput Status = "INVALID_INPUT"
	StatusReserved     Status = "RESERVED"
	StatusOutOfStock   Status = "OUT_OF_STOCK"
	StatusRefund       Status = "REFUND"
	StatusRefunded     Status = "REFUNDED"
)

// IsKnown reports whether the status belongs to the saga vocabulary.
func (s Status) IsKnown() bool {
	switch s {
	case StatusValid, StatusInvalidInput, StatusReserved, StatusOutOfStock, StatusRefund, StatusRefunded:
		return true
	default:
		return false
	}
}

// payloadWrapperKey is the key some orchestrator calling conventions nest the record under.
const payloadWrapperKey = "Payload"

var ErrMalformedPayload = errors.New("order payload must be a JSON object")

// OrderContext is the record threaded through every saga step.
//
// Fields the saga does not know about are kept in Extra and written back on
// marshal, so a step never drops payload that a later step depends on.
type OrderContext struct {
	OrderID           string
	ConnectionID      string
	SKU               string
	Amount            json.RawMessage
	Status            Status
	InventorySnapshot *StockSnapshot
	Extra             map[string]json.RawMessage
}

type orderContextJSON struct {
	OrderID           string          `json:"orderId,omitempty"`
	ConnectionID      string          `json:"connectionId,omitempty"`
	SKU               string          `json:"sku,omitempty"`
	Amount            json.RawMessage `json:"amount,omitempty"`
	Status            Status          `json:"status,omitempty"`
	InventorySnapshot *StockSnapshot  `json:"inventorySnapshot,omitempty"`
}

var knownOrderFields = []string{"orderId", "connectionId", "sku", "amount", "status", "inventorySnapshot"}

// Clone returns a deep copy so steps can extend a record without aliasing the caller's.
func (o OrderContext) Clone() OrderContext {
	out := o
	if o.Amount != nil {
		out.Amount = append(json.RawMessage(nil), o.Amount...)
	}
	if o.InventorySnapshot != nil {
		snapshot := *o.InventorySnapshot
		out.InventorySnapshot = &snapshot
	}
	if o.Extra != nil {
		out.Extra = maps.Clone(o.Extra)
	}
	return out
}

// WithStatus returns a copy of the record with the status overwritten.
func (o OrderContext) WithStatus(status Status) OrderContext {
	out := o.Clone()
	out.Status = status
	return out
}

// Value reports the named field as a string for required-field checks.
func (o OrderContext) Value(field Field) string {
	switch field {
	case FieldOrderID:
		return o.OrderID
	case FieldConnectionID:
		return o.ConnectionID
	case FieldSKU:
		return o.SKU
	case FieldStatus:
		return string(o.Status)
	default:
		return ""
	}
}

// MarshalJSON writes the known fields on top of the preserved unknown ones.
func (o OrderContext) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(orderContextJSON{
		OrderID:           o.OrderID,
		ConnectionID:      o.ConnectionID,
		SKU:               o.SKU,
		Amount:            o.Amount,
		Status:            o.Status,
		InventorySnapshot: o.InventorySnapshot,
	})
	if err != nil {
		return nil, err
	}
	if len(o.Extra) == 0 {
		return known, nil
	}
	fields := make(map[string]json.RawMessage, len(o.Extra)+len(knownOrderFields))
	maps.Copy(fields, o.Extra)
	var knownFields map[string]json.RawMessage
	if err := json.Unmarshal(known, &knownFields); err != nil {
		return nil, err
	}
	maps.Copy(fields, knownFields)
	return json.Marshal(fields)
}

// UnmarshalJSON reads the known fields and keeps everything else in Extra.
func (o *OrderContext) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return ErrMalformedPayload
	}
	var known orderContextJSON
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}
	for _, key := range knownOrderFields {
		delete(fields, key)
	}
	*o = OrderContext{
		OrderID:           known.OrderID,
		ConnectionID:      known.ConnectionID,
		SKU:               known.SKU,
		Amount:            known.Amount,
		Status:            known.Status,
		InventorySnapshot: known.InventorySnapshot,
	}
	if len(o.Amount) > 0 && bytes.Equal(o.Amount, []byte("null")) {
		o.Amount = nil
	}
	if len(fields) > 0 {
		o.Extra = fields
	}
	return nil
}

// DecodeOrderContext parses a record that may be nested under a "Payload" wrapper key. An
// object under Payload wins over any sibling keys of the envelope, such as invoke metadata.
func DecodeOrderContext(data []byte) (OrderContext, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return OrderContext{}, err
	}
	if envelope == nil {
		return OrderContext{}, ErrMalformedPayload
	}
	if inner, ok := envelope[payloadWrapperKey]; ok {
		trimmed := bytes.TrimSpace(inner)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			data = inner
		}
	}
	var order OrderContext
	if err := json.Unmarshal(data, &order); err != nil {
		return OrderContext{}, err
	}
	return order, nil
}

package application

import (
	"errors"
	"fmt"

	"github.com/Apurer/go-order-saga/internal/domains/orders/domain"
)

var (
	// ErrInvalidOrder signals the record has no order id.
	ErrInvalidOrder = errors.New("INVALID_ORDER")
	// ErrMissingConnection signals the record has no connection id to notify.
	ErrMissingConnection = errors.New("MISSING_CONNECTION_ID")
	// ErrMissingSKU signals a reservation without a SKU.
	ErrMissingSKU = errors.New("MISSING_SKU")
	// ErrMissingStatus signals a notification without a status to report.
	ErrMissingStatus = errors.New("MISSING_STATUS")
	// ErrDeliveryFailed wraps transport failures other than a gone connection.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

var fieldErrors = map[domain.Field]error{
	domain.FieldOrderID:      ErrInvalidOrder,
	domain.FieldConnectionID: ErrMissingConnection,
	domain.FieldSKU:          ErrMissingSKU,
	domain.FieldStatus:       ErrMissingStatus,
}

// StepError is the single failure type of a saga step rejecting its input.
type StepError struct {
	Step  domain.Step
	Field domain.Field
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step: %s: %s is required", e.Step, e.Err, e.Field)
}

func (e *StepError) Unwrap() error { return e.Err }

// Code is the stable, wire-level identifier of the failure.
func (e *StepError) Code() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// AsStepError extracts a StepError from an error chain.
func AsStepError(err error) (*StepError, bool) {
	var stepErr *StepError
	if errors.As(err, &stepErr) {
		return stepErr, true
	}
	return nil, false
}

// checkRequired fails fast on the first required field the step's schema says is missing.
func checkRequired(step domain.Step, order domain.OrderContext) error {
	field, missing := order.MissingField(step)
	if !missing {
		return nil
	}
	cause, ok := fieldErrors[field]
	if !ok {
		cause = fmt.Errorf("MISSING_%s", field)
	}
	return &StepError{Step: step, Field: field, Err: cause}
}

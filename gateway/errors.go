package gateway

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("payment amount must be greater than zero")
	ErrUnsupportedMethod   = errors.New("unsupported payment method")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrRefundNotAllowed    = errors.New("only paid payments can be refunded")
	ErrRefundExceedsAmount = errors.New("refund amount exceeds the payment amount")
)

// ValidationError reports a missing or malformed payment field. It is never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func missing(field string) error {
	return &ValidationError{Field: field, Message: "is required"}
}

func invalid(field string) error {
	return &ValidationError{Field: field, Message: "is invalid"}
}

// Processor error codes retried by the payment policy.
const (
	CodeProcessorBusy = "processor_busy"
	CodeRateLimited   = "rate_limited"
)

// ProcessorError is a coded rejection reported by a payment processor.
type ProcessorError struct {
	Reason  string
	Message string
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("processor rejected payment (%s): %s", e.Reason, e.Message)
}

func (e *ProcessorError) Code() string { return e.Reason }

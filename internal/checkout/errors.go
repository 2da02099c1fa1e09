package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrNoPendingPayment   = errors.New("no payment is pending")
	ErrUnknownPayment     = errors.New("payment reference does not match the pending checkout")
	ErrPaymentTimeout     = errors.New("payment not completed in time")
	ErrPaymentCancelled   = errors.New("payment cancelled")
	ErrPaymentNotVerified = errors.New("payment not confirmed by the gateway")
	ErrCartChanged        = errors.New("cart changed while payment was pending")
	ErrOrderSubmission    = errors.New("order submission failed")
	ErrIllegalTransition  = errors.New("illegal transition of checkout status")
)

// ValidationError lists the form fields that failed validation, keyed by field name.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = msg
}

// PaymentError is a refusal reported by the payment gateway, or a failure to reach it.
type PaymentError struct {
	Reason string
	Err    error
}

func (e *PaymentError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("payment failed: %s", e.Reason)
	}
	return fmt.Sprintf("payment failed: %v", e.Err)
}

func (e *PaymentError) Unwrap() error {
	return e.Err
}

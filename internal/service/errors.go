package service

import "errors"

// ValidationError reports a cart that failed price validation: tampered
// lines, unresolvable products, or both. It maps to a 400 response and never
// to a generic 500.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	return "cart validation failed"
}

// ClientInputError reports malformed or unusable client input outside the
// cart lines themselves (e.g. a shipping address that does not exist or does
// not belong to the caller). Maps to 400 with no side effects.
type ClientInputError struct {
	Msg string
}

func (e *ClientInputError) Error() string {
	return e.Msg
}

// ErrInvalidSignature is returned when a payment callback fails signature
// verification.
var ErrInvalidSignature = errors.New("invalid payment signature")

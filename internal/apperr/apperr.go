// Package apperr defines the sentinel errors shared across layers. Callers
// classify failures with errors.Is; the transport layer maps them to HTTP
// status codes.
package apperr

import "errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNoSavedPaymentMethod   = errors.New("no saved payment method")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSignatureInvalid       = errors.New("signature invalid")
)

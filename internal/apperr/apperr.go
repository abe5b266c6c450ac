// Package apperr defines the error taxonomy shared by every lifecycle
// operation. Callers classify with errors.Is / errors.As; nothing in the
// core returns an untyped failure for a business condition.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound marks an unknown order, payment or refund id.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSignature marks a webhook whose signature did not verify.
	// Always fatal for that delivery; never retried internally.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrConflict marks an optimistic re-read that found the aggregate
	// already moved past the expected precondition.
	ErrConflict = errors.New("aggregate state changed concurrently")
)

// ValidationError reports bad input shape. Not retryable without
// changing the request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IllegalTransition reports a state change not present in the machine's
// adjacency table. It is surfaced as-is, never coerced to a nearby state.
type IllegalTransition struct {
	Entity string
	From   string
	To     string
}

func (e *IllegalTransition) Error() string {
	return fmt.Sprintf("illegal %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// GatewayError wraps a failed call to the external payment processor with
// the operation and aggregate it was made for. Retryable distinguishes
// transport failures from terminal business declines, passed through from
// the gateway's own classification.
type GatewayError struct {
	Op          string
	AggregateID string
	Retryable   bool
	Decline     string // human-readable decline reason, if the gateway gave one
	Err         error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s (%s): %v", e.Op, e.AggregateID, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Kind maps an error onto a stable string used in logs and responses.
func Kind(err error) string {
	var (
		ve *ValidationError
		it *IllegalTransition
		ge *GatewayError
	)
	switch {
	case err == nil:
		return ""

	case errors.As(err, &ve):
		return "validation"

	case errors.As(err, &it):
		return "illegal_transition"

	case errors.Is(err, ErrNotFound):
		return "not_found"

	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"

	case errors.Is(err, ErrConflict):
		return "conflict"

	case errors.As(err, &ge):
		return "gateway"

	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"

	case errors.Is(err, context.Canceled):
		return "canceled"

	default:
		return "internal"
	}
}

func HTTPStatus(err error) int {
	var (
		ve *ValidationError
		it *IllegalTransition
		ge *GatewayError
	)
	switch {
	case err == nil:
		return http.StatusOK

	case errors.As(err, &ve):
		return http.StatusBadRequest

	case errors.As(err, &it):
		return http.StatusUnprocessableEntity

	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, ErrConflict):
		return http.StatusConflict

	case errors.As(err, &ge):
		return http.StatusBadGateway

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

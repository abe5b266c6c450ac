package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKind(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("create refund: %w", ErrConflict)
	gw := &GatewayError{Op: "capture", AggregateID: "p1", Err: errors.New("timeout")}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "validation", err: Validationf("amount", "must be positive"), want: "validation"},
		{name: "illegal_transition", err: &IllegalTransition{Entity: "order", From: "SHIPPED", To: "CANCELLED"}, want: "illegal_transition"},
		{name: "not_found", err: ErrNotFound, want: "not_found"},
		{name: "not_found_wrapped", err: fmt.Errorf("refund: %w", ErrNotFound), want: "not_found"},
		{name: "invalid_signature", err: ErrInvalidSignature, want: "invalid_signature"},
		{name: "conflict_wrapped", err: wrapped, want: "conflict"},
		{name: "gateway", err: gw, want: "gateway"},
		{name: "gateway_wrapped", err: fmt.Errorf("confirm: %w", gw), want: "gateway"},
		{name: "deadline", err: context.DeadlineExceeded, want: "timeout"},
		{name: "canceled", err: context.Canceled, want: "canceled"},
		{name: "unknown", err: errors.New("boom"), want: "internal"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := Kind(tt.err); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "nil", err: nil, want: http.StatusOK},
		{name: "validation", err: Validationf("currency", "required"), want: http.StatusBadRequest},
		{name: "illegal_transition", err: &IllegalTransition{Entity: "payment", From: "SETTLED", To: "PENDING"}, want: http.StatusUnprocessableEntity},
		{name: "not_found", err: ErrNotFound, want: http.StatusNotFound},
		{name: "invalid_signature", err: ErrInvalidSignature, want: http.StatusUnauthorized},
		{name: "conflict", err: ErrConflict, want: http.StatusConflict},
		{name: "gateway", err: &GatewayError{Op: "refund", Err: errors.New("503")}, want: http.StatusBadGateway},
		{name: "deadline", err: context.DeadlineExceeded, want: http.StatusGatewayTimeout},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := HTTPStatus(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGatewayErrorUnwrap(t *testing.T) {
	t.Parallel()

	root := errors.New("connection refused")
	err := fmt.Errorf("process payment: %w", &GatewayError{Op: "create_intent", AggregateID: "pay-1", Retryable: true, Err: root})

	var ge *GatewayError
	if !errors.As(err, &ge) {
		t.Fatal("expected GatewayError in chain")
	}
	if !ge.Retryable {
		t.Fatal("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatal("expected root cause in chain")
	}
}

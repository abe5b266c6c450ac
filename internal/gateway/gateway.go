// Package gateway abstracts the external card-processing service. The
// core treats it as an opaque remote capability; only the status strings
// it reports leak through, and those are mapped once at the edge.
package gateway

import (
	"context"

	"github.com/ordercore/fulfillment/internal/money"
)

// IntentResult is the gateway's answer to creating a payment intent.
type IntentResult struct {
	ExternalID   string
	Status       string
	ClientSecret string
}

// RefundResult is the gateway's answer to creating a refund.
type RefundResult struct {
	ExternalID string
	Status     string
}

// Gateway is the remote processor. Every call blocks on network I/O and
// must be issued with a bounded timeout, outside any open database
// transaction.
type Gateway interface {
	CreatePaymentIntent(ctx context.Context, amount money.Money, customerRef string) (IntentResult, error)
	ConfirmPaymentIntent(ctx context.Context, externalID string) (string, error)
	CancelPaymentIntent(ctx context.Context, externalID string) (string, error)
	CapturePaymentIntent(ctx context.Context, externalID string) (string, error)
	// GetPaymentIntent re-fetches the authoritative intent status, used by
	// the reconciliation sweep.
	GetPaymentIntent(ctx context.Context, externalID string) (string, error)

	CreateRefund(ctx context.Context, paymentExternalID string, amount money.Money, reason string) (RefundResult, error)
	GetRefund(ctx context.Context, externalID string) (string, error)
}

package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
)

// Simulator is an in-memory Gateway for local runs and tests. It keeps
// the processor-side truth per external id, so reconciliation against it
// behaves like asking the real processor what actually happened.
type Simulator struct {
	mu      sync.RWMutex
	intents map[string]*simIntent
	refunds map[string]string // refund external id -> status

	// IntentStatus is reported for newly created intents.
	IntentStatus string
	// RefundStatus is reported for newly created refunds.
	RefundStatus string
	// Decline, when set, fails CreatePaymentIntent with a terminal
	// business decline carrying this reason.
	Decline string
	// Unreachable, when true, fails every call with a retryable
	// transport error.
	Unreachable bool
}

type simIntent struct {
	status   string
	amount   money.Money
	customer string
}

func NewSimulator() *Simulator {
	return &Simulator{
		intents:      make(map[string]*simIntent),
		refunds:      make(map[string]string),
		IntentStatus: "processing",
		RefundStatus: "pending",
	}
}

func (s *Simulator) transportErr(op, id string) error {
	return &apperr.GatewayError{Op: op, AggregateID: id, Retryable: true, Err: fmt.Errorf("gateway unreachable")}
}

func (s *Simulator) CreatePaymentIntent(ctx context.Context, amount money.Money, customerRef string) (IntentResult, error) {
	if s.Unreachable {
		return IntentResult{}, s.transportErr("create_intent", "")
	}
	if s.Decline != "" {
		return IntentResult{}, &apperr.GatewayError{
			Op: "create_intent", Retryable: false, Decline: s.Decline,
			Err: fmt.Errorf("card declined: %s", s.Decline),
		}
	}

	id := "pi_" + uuid.NewString()
	s.mu.Lock()
	s.intents[id] = &simIntent{status: s.IntentStatus, amount: amount, customer: customerRef}
	s.mu.Unlock()
	return IntentResult{ExternalID: id, Status: s.IntentStatus, ClientSecret: id + "_secret"}, nil
}

func (s *Simulator) ConfirmPaymentIntent(ctx context.Context, externalID string) (string, error) {
	return s.setIntentStatus("confirm_intent", externalID, "succeeded")
}

func (s *Simulator) CancelPaymentIntent(ctx context.Context, externalID string) (string, error) {
	return s.setIntentStatus("cancel_intent", externalID, "canceled")
}

func (s *Simulator) CapturePaymentIntent(ctx context.Context, externalID string) (string, error) {
	return s.setIntentStatus("capture_intent", externalID, "succeeded")
}

func (s *Simulator) GetPaymentIntent(ctx context.Context, externalID string) (string, error) {
	if s.Unreachable {
		return "", s.transportErr("get_intent", externalID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	in, ok := s.intents[externalID]
	if !ok {
		return "", &apperr.GatewayError{Op: "get_intent", AggregateID: externalID, Err: fmt.Errorf("no such intent")}
	}
	return in.status, nil
}

func (s *Simulator) CreateRefund(ctx context.Context, paymentExternalID string, amount money.Money, reason string) (RefundResult, error) {
	if s.Unreachable {
		return RefundResult{}, s.transportErr("create_refund", paymentExternalID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.intents[paymentExternalID]; !ok {
		return RefundResult{}, &apperr.GatewayError{Op: "create_refund", AggregateID: paymentExternalID, Err: fmt.Errorf("no such intent")}
	}
	id := "re_" + uuid.NewString()
	s.refunds[id] = s.RefundStatus
	return RefundResult{ExternalID: id, Status: s.RefundStatus}, nil
}

func (s *Simulator) GetRefund(ctx context.Context, externalID string) (string, error) {
	if s.Unreachable {
		return "", s.transportErr("get_refund", externalID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.refunds[externalID]
	if !ok {
		return "", &apperr.GatewayError{Op: "get_refund", AggregateID: externalID, Err: fmt.Errorf("no such refund")}
	}
	return st, nil
}

// SettleRefund flips a simulated refund to succeeded, as the processor
// would do asynchronously before sending a webhook.
func (s *Simulator) SettleRefund(externalID string) {
	s.mu.Lock()
	s.refunds[externalID] = "succeeded"
	s.mu.Unlock()
}

// SettleIntent flips a simulated intent to succeeded.
func (s *Simulator) SettleIntent(externalID string) {
	s.mu.Lock()
	if in, ok := s.intents[externalID]; ok {
		in.status = "succeeded"
	}
	s.mu.Unlock()
}

func (s *Simulator) setIntentStatus(op, externalID, status string) (string, error) {
	if s.Unreachable {
		return "", s.transportErr(op, externalID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	in, ok := s.intents[externalID]
	if !ok {
		return "", &apperr.GatewayError{Op: op, AggregateID: externalID, Err: fmt.Errorf("no such intent")}
	}
	in.status = status
	return status, nil
}

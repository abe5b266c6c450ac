package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/ordercore/fulfillment/internal/money"
)

// Payment references its Order by id only; the order side never holds a
// pointer back. Once a payment reaches a final status, the only fields
// that still change are the refund bookkeeping ones.
type Payment struct {
	ID      uuid.UUID
	OrderID uuid.UUID
	UserID  uuid.UUID
	Amount  money.Money
	Status  Status

	GatewayIntentID     string
	GatewayClientSecret string
	GatewayCustomerRef  string

	FailureReason string

	// RefundedTotal is derived: it must equal the sum of this payment's
	// SUCCEEDED refunds. Recomputed from storage, never incremented blindly.
	RefundedTotal money.Money

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanRefund reports whether a refund may be opened against this payment:
// funds actually moved and some balance remains.
func (p *Payment) CanRefund() bool {
	switch {
	case !p.Status.FundsTransferred():
		return false
	case p.Status == StatusRefunded || p.Status == StatusRefunding:
		return false
	case p.Status == StatusDisputed || p.Status == StatusChargeback ||
		p.Status == StatusDisputeWon || p.Status == StatusDisputeLost:
		return false
	}
	remaining, err := p.Amount.Sub(p.RefundedTotal)
	if err != nil {
		return false
	}
	return remaining.IsPositive()
}

// Remaining is the refundable balance.
func (p *Payment) Remaining() (money.Money, error) {
	return p.Amount.Sub(p.RefundedTotal)
}

// PaymentMethod is the stored gateway payment-method linkage, updated by
// payment_method.attached / .detached webhook events.
type PaymentMethod struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	GatewayMethodID    string
	GatewayCustomerRef string
	Attached           bool
	UpdatedAt          time.Time
}

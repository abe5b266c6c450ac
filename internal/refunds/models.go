package refunds

import (
	"time"

	"github.com/google/uuid"

	"github.com/ordercore/fulfillment/internal/money"
)

type Type string

const (
	TypeFull    Type = "FULL"
	TypePartial Type = "PARTIAL"
)

type Refund struct {
	ID              uuid.UUID
	PaymentID       uuid.UUID
	OrderID         uuid.UUID
	Amount          money.Money
	Reason          string
	Status          Status
	GatewayRefundID string
	RequestedBy     uuid.UUID
	ApprovedBy      uuid.UUID
	ReviewNote      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TypeAgainst classifies the refund relative to the payment's charged
// amount. Derived, never stored.
func (r *Refund) TypeAgainst(charged money.Money) Type {
	if r.Amount.Equal(charged) {
		return TypeFull
	}
	return TypePartial
}

package orders

import (
	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/tracking"
)

type Status string

const (
	StatusPending            Status = "PENDING"
	StatusConfirmed          Status = "CONFIRMED"
	StatusPaymentAuthorized  Status = "PAYMENT_AUTHORIZED"
	StatusPaid               Status = "PAID"
	StatusProcessing         Status = "PROCESSING"
	StatusPreparing          Status = "PREPARING"
	StatusPartiallyShipped   Status = "PARTIALLY_SHIPPED"
	StatusShipped            Status = "SHIPPED"
	StatusOutForDelivery     Status = "OUT_FOR_DELIVERY"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusDelivered          Status = "DELIVERED"
	StatusCompleted          Status = "COMPLETED"
	StatusOnHold             Status = "ON_HOLD"
	StatusCancelled          Status = "CANCELLED"
	StatusFailed             Status = "FAILED"
	StatusRefunded           Status = "REFUNDED"
	StatusReturning          Status = "RETURNING"
	StatusReturned           Status = "RETURNED"
)

// validNext is the single source of truth for which order transitions are
// legal. Terminal states map to an empty set.
var validNext = map[Status][]Status{
	StatusPending:            {StatusConfirmed, StatusPaymentAuthorized, StatusOnHold, StatusCancelled, StatusFailed},
	StatusConfirmed:          {StatusPaymentAuthorized, StatusPaid, StatusOnHold, StatusCancelled, StatusFailed},
	StatusPaymentAuthorized:  {StatusPaid, StatusOnHold, StatusCancelled, StatusFailed},
	StatusPaid:               {StatusProcessing, StatusOnHold, StatusRefunded, StatusFailed},
	StatusProcessing:         {StatusPreparing, StatusOnHold, StatusFailed},
	StatusPreparing:          {StatusPartiallyShipped, StatusShipped, StatusOnHold, StatusFailed},
	StatusPartiallyShipped:   {StatusShipped, StatusOutForDelivery, StatusPartiallyDelivered},
	StatusShipped:            {StatusOutForDelivery, StatusPartiallyDelivered, StatusDelivered},
	StatusOutForDelivery:     {StatusDelivered, StatusPartiallyDelivered},
	StatusPartiallyDelivered: {StatusDelivered},
	StatusDelivered:          {StatusCompleted, StatusReturning, StatusRefunded},
	StatusCompleted:          {},
	StatusOnHold:             {StatusPending, StatusConfirmed, StatusProcessing, StatusCancelled, StatusFailed},
	StatusCancelled:          {},
	StatusFailed:             {},
	StatusRefunded:           {},
	StatusReturning:          {StatusReturned, StatusRefunded},
	StatusReturned:           {},
}

var terminal = map[Status]bool{
	StatusCompleted: true,
	StatusCancelled: true,
	StatusFailed:    true,
	StatusRefunded:  true,
	StatusReturned:  true,
}

// cancellable lists the statuses from which a customer cancellation is
// still possible: nothing has shipped yet.
var cancellable = map[Status]bool{
	StatusPending:           true,
	StatusConfirmed:         true,
	StatusPaymentAuthorized: true,
	StatusOnHold:            true,
}

func (s Status) IsTerminal() bool { return terminal[s] }

func (s Status) CanBeCancelled() bool { return cancellable[s] }

func CanTransition(from, to Status) bool {
	for _, n := range validNext[from] {
		if n == to {
			return true
		}
	}
	return false
}

// AssertTransition validates a user-facing advance request. Same-state is
// rejected here; only externally-retried applies tolerate it, and they go
// through applyExternal instead.
func AssertTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return &apperr.IllegalTransition{Entity: "order", From: string(from), To: string(to)}
	}
	return nil
}

// trackingFor maps every order status to its shipment-facing tracking
// status. The table is total: an order transition without a mapping is a
// programming error caught by tests.
var trackingFor = map[Status]tracking.Status{
	StatusPending:            tracking.OrderPlaced,
	StatusConfirmed:          tracking.Confirmed,
	StatusPaymentAuthorized:  tracking.PaymentPending,
	StatusPaid:               tracking.Processing,
	StatusProcessing:         tracking.Processing,
	StatusPreparing:          tracking.Processing,
	StatusPartiallyShipped:   tracking.Shipped,
	StatusShipped:            tracking.Shipped,
	StatusOutForDelivery:     tracking.OutForDelivery,
	StatusPartiallyDelivered: tracking.OutForDelivery,
	StatusDelivered:          tracking.Delivered,
	StatusCompleted:          tracking.Completed,
	StatusOnHold:             tracking.OnHold,
	StatusCancelled:          tracking.Cancelled,
	StatusFailed:             tracking.Failed,
	StatusRefunded:           tracking.Refunded,
	StatusReturning:          tracking.ReturnInProgress,
	StatusReturned:           tracking.Returned,
}

func TrackingStatusFor(s Status) tracking.Status { return trackingFor[s] }

// AllStatuses is used by exhaustive table tests.
func AllStatuses() []Status {
	return []Status{
		StatusPending, StatusConfirmed, StatusPaymentAuthorized, StatusPaid,
		StatusProcessing, StatusPreparing, StatusPartiallyShipped, StatusShipped,
		StatusOutForDelivery, StatusPartiallyDelivered, StatusDelivered,
		StatusCompleted, StatusOnHold, StatusCancelled, StatusFailed,
		StatusRefunded, StatusReturning, StatusReturned,
	}
}

// Package tracking is the append-only ledger of shipment-facing order
// events. Entries are written in the same transaction as the order
// transition they record and are never mutated afterwards.
package tracking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	OrderPlaced      Status = "ORDER_PLACED"
	PaymentPending   Status = "PAYMENT_PENDING"
	Confirmed        Status = "CONFIRMED"
	Processing       Status = "PROCESSING"
	Shipped          Status = "SHIPPED"
	OutForDelivery   Status = "OUT_FOR_DELIVERY"
	Delivered        Status = "DELIVERED"
	Completed        Status = "COMPLETED"
	Cancelled        Status = "CANCELLED"
	Failed           Status = "FAILED"
	Refunded         Status = "REFUNDED"
	ReturnInProgress Status = "RETURN_IN_PROGRESS"
	Returned         Status = "RETURNED"
	OnHold           Status = "ON_HOLD"
)

type Entry struct {
	ID             uuid.UUID
	OrderID        uuid.UUID
	Status         Status
	Carrier        string
	TrackingNumber string
	Note           string
	Automated      bool
	Actor          string
	CreatedAt      time.Time
}

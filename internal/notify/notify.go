// Package notify holds the best-effort external collaborators invoked
// after a state transition commits: customer notification and inventory
// release. Their failures are logged, never propagated back into the
// already-committed transition.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ordercore/fulfillment/internal/kafka"
)

const (
	TopicOrderEvents      = "fulfillment.order.events"
	TopicInventoryRelease = "fulfillment.inventory.release"
)

// Event kinds published on terminal-ish order transitions.
const (
	KindOrderShipped   = "OrderShipped"
	KindOrderDelivered = "OrderDelivered"
	KindOrderCompleted = "OrderCompleted"
	KindOrderCancelled = "OrderCancelled"
	KindOrderRefunded  = "OrderRefunded"
	KindOrderReturned  = "OrderReturned"
)

// Envelope is the versioned wrapper every published event travels in.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderEventPayload struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason,omitempty"`
}

type InventoryReleasePayload struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason,omitempty"`
}

// Notifier reports order lifecycle events to downstream consumers.
type Notifier interface {
	OrderEvent(ctx context.Context, kind string, p OrderEventPayload) error
}

// InventoryReleaser asks the inventory service to release reserved stock
// after a cancellation commits.
type InventoryReleaser interface {
	Release(ctx context.Context, orderID uuid.UUID, reason string) error
}

// Partition key = order id so all events of one order keep their order.
func partitionKey(orderID string) []byte { return []byte(orderID) }

// KafkaNotifier publishes envelopes through the async producer.
type KafkaNotifier struct {
	Producer *kafkax.Producer
	Service  string
}

func (n *KafkaNotifier) OrderEvent(ctx context.Context, kind string, p OrderEventPayload) error {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     kind,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      n.Service,
		CorrelationID: p.OrderID,
		Payload:       kafkax.MustMarshal(p),
	}
	n.Producer.Publish(partitionKey(p.OrderID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(kind)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

// KafkaInventoryReleaser publishes release requests; the inventory
// service consumes them at its own pace.
type KafkaInventoryReleaser struct {
	Producer *kafkax.Producer
	Service  string
}

func (r *KafkaInventoryReleaser) Release(ctx context.Context, orderID uuid.UUID, reason string) error {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     "InventoryRelease",
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: orderID.String(),
		Payload:       kafkax.MustMarshal(InventoryReleasePayload{OrderID: orderID.String(), Reason: reason}),
	}
	r.Producer.Publish(partitionKey(orderID.String()), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte("InventoryRelease")},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

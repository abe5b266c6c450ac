package redisx

import "time"

const (
	// Cache of the last committed order status: order_status:{order_id}.
	// Postgres stays the source of truth; this only speeds up reads.
	KeyOrderStatus = "order_status:%s"

	// Queue of webhook refund events that arrived before the local refund
	// row was visible. Drained by the retry worker.
	KeyWebhookRetry = "webhook:refund:retry"

	// Events whose retry budget is exhausted, kept for manual inspection.
	KeyWebhookDead = "webhook:refund:dead"
)

var (
	TTLStatusCache = 5 * time.Minute
)

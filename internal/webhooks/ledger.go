package webhooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/ordercore/fulfillment/internal/postgres"
)

// Ledger records every accepted event id. The insert shares the
// transaction with the event's effect, so an event is marked processed
// exactly when its effect commits, and a replayed id is a no-op.
type Ledger struct{}

// Record returns false when the event id was already recorded.
func (Ledger) Record(ctx context.Context, q postgres.Querier, eventID, eventType, payloadHash string, at time.Time) (bool, error) {
	ct, err := q.Exec(ctx, `
		INSERT INTO webhook_events (event_id, event_type, payload_hash, processed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO NOTHING`,
		eventID, eventType, payloadHash, at)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func HashPayload(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

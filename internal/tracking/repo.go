package tracking

import (
	"context"

	"github.com/google/uuid"
	"github.com/ordercore/fulfillment/internal/postgres"
)

type Repo struct{}

// Append inserts one ledger entry. There is deliberately no update or
// delete counterpart.
func (Repo) Append(ctx context.Context, q postgres.Querier, e *Entry) error {
	_, err := q.Exec(ctx, `
		INSERT INTO tracking_entries
			(id, order_id, status, carrier, tracking_number, note, automated, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		e.ID, e.OrderID, e.Status, e.Carrier, e.TrackingNumber, e.Note, e.Automated, e.Actor, e.CreatedAt,
	)
	return err
}

func (Repo) ListByOrder(ctx context.Context, q postgres.Querier, orderID uuid.UUID) ([]Entry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, status, carrier, tracking_number, note, automated, actor, created_at
		FROM tracking_entries
		WHERE order_id = $1
		ORDER BY created_at, id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Carrier, &e.TrackingNumber,
			&e.Note, &e.Automated, &e.Actor, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

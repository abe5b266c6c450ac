package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
	"github.com/ordercore/fulfillment/internal/postgres"
)

type Repo struct{}

func (Repo) Create(ctx context.Context, q postgres.Querier, o *Order) error {
	_, err := q.Exec(ctx, `
		INSERT INTO orders
			(id, user_id, status, currency, subtotal, discount, tax, shipping, total,
			 cancellation_reason, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		o.ID, o.UserID, o.Status, o.Currency,
		o.Subtotal.StringAmount(), o.Discount.StringAmount(), o.Tax.StringAmount(),
		o.Shipping.StringAmount(), o.Total.StringAmount(),
		o.CancellationReason, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		if _, err := q.Exec(ctx, `
			INSERT INTO order_items (order_id, product_id, qty, unit_price)
			VALUES ($1,$2,$3,$4)`,
			o.ID, it.ProductID, it.Qty, it.UnitPrice.StringAmount(),
		); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error) {
	return r.get(ctx, q, id, false)
}

// GetForUpdate re-reads the aggregate with a row lock so the legality
// check inside the caller's transaction cannot act on stale status.
func (r Repo) GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Order, error) {
	return r.get(ctx, q, id, true)
}

func (Repo) get(ctx context.Context, q postgres.Querier, id uuid.UUID, lock bool) (*Order, error) {
	sql := `
		SELECT id, user_id, status, currency, subtotal, discount, tax, shipping, total,
		       cancellation_reason, created_at, updated_at, cancelled_at
		FROM orders WHERE id = $1`
	if lock {
		sql += ` FOR UPDATE`
	}

	var (
		o                                         Order
		subtotal, discount, tax, shipping, total string
	)
	err := q.QueryRow(ctx, sql, id).Scan(
		&o.ID, &o.UserID, &o.Status, &o.Currency,
		&subtotal, &discount, &tax, &shipping, &total,
		&o.CancellationReason, &o.CreatedAt, &o.UpdatedAt, &o.CancelledAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	for dst, src := range map[*money.Money]string{
		&o.Subtotal: subtotal, &o.Discount: discount, &o.Tax: tax,
		&o.Shipping: shipping, &o.Total: total,
	} {
		if *dst, err = money.FromString(src, o.Currency); err != nil {
			return nil, err
		}
	}

	rows, err := q.Query(ctx, `
		SELECT product_id, qty, unit_price FROM order_items WHERE order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			it    Item
			price string
		)
		if err := rows.Scan(&it.ProductID, &it.Qty, &price); err != nil {
			return nil, err
		}
		if it.UnitPrice, err = money.FromString(price, o.Currency); err != nil {
			return nil, err
		}
		o.Items = append(o.Items, it)
	}
	return &o, rows.Err()
}

func (Repo) UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, updatedAt time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, updatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (Repo) SetCancelled(ctx context.Context, q postgres.Querier, id uuid.UUID, reason string, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE orders
		SET status = $2, cancellation_reason = $3, cancelled_at = $4, updated_at = $4
		WHERE id = $1`,
		id, StatusCancelled, reason, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

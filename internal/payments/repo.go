package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/money"
	"github.com/ordercore/fulfillment/internal/postgres"
)

type Repo struct{}

const paymentCols = `
	id, order_id, user_id, amount, currency, status,
	gateway_intent_id, gateway_client_secret, gateway_customer_ref,
	failure_reason, refunded_total, created_at, updated_at`

func (Repo) Create(ctx context.Context, q postgres.Querier, p *Payment) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payments (`+paymentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		p.ID, p.OrderID, p.UserID, p.Amount.StringAmount(), p.Amount.Currency(), p.Status,
		p.GatewayIntentID, p.GatewayClientSecret, p.GatewayCustomerRef,
		p.FailureReason, p.RefundedTotal.StringAmount(), p.CreatedAt, p.UpdatedAt,
	)
	return err
}

func (r Repo) Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Payment, error) {
	return r.scanOne(q.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1`, id))
}

func (r Repo) GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Payment, error) {
	return r.scanOne(q.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE id = $1 FOR UPDATE`, id))
}

// GetByIntentForUpdate locks the payment owning a gateway intent id;
// webhook merges address payments by external id only.
func (r Repo) GetByIntentForUpdate(ctx context.Context, q postgres.Querier, intentID string) (*Payment, error) {
	return r.scanOne(q.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments WHERE gateway_intent_id = $1 FOR UPDATE`, intentID))
}

func (Repo) scanOne(row pgx.Row) (*Payment, error) {
	var (
		p                      Payment
		amount, refunded, cur string
	)
	err := row.Scan(
		&p.ID, &p.OrderID, &p.UserID, &amount, &cur, &p.Status,
		&p.GatewayIntentID, &p.GatewayClientSecret, &p.GatewayCustomerRef,
		&p.FailureReason, &refunded, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.Amount, err = money.FromString(amount, cur); err != nil {
		return nil, err
	}
	if p.RefundedTotal, err = money.FromString(refunded, cur); err != nil {
		return nil, err
	}
	return &p, nil
}

func (Repo) UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, failureReason string, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE payments
		SET status = $2,
		    failure_reason = CASE WHEN $3 = '' THEN failure_reason ELSE $3 END,
		    updated_at = $4
		WHERE id = $1`,
		id, status, failureReason, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (Repo) SetGatewayRefs(ctx context.Context, q postgres.Querier, id uuid.UUID, intentID, clientSecret, customerRef string, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE payments
		SET gateway_intent_id = $2, gateway_client_secret = $3,
		    gateway_customer_ref = COALESCE(NULLIF($4, ''), gateway_customer_ref),
		    updated_at = $5
		WHERE id = $1`,
		id, intentID, clientSecret, customerRef, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

// SumSucceededRefunds reads the authoritative refunded total from the
// refunds table. Always called inside the transaction that holds the
// payment row lock, so two concurrent refunds cannot both see the old sum.
func (Repo) SumSucceededRefunds(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) (decimal.Decimal, error) {
	var s string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1 AND status = 'SUCCEEDED'`, paymentID).Scan(&s)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

func (Repo) SetRefundedTotal(ctx context.Context, q postgres.Querier, id uuid.UUID, total money.Money, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE payments SET refunded_total = $2, updated_at = $3 WHERE id = $1`,
		id, total.StringAmount(), at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

// FindStuckBefore returns payments still waiting on an asynchronous
// gateway result, for the reconciliation sweep.
func (r Repo) FindStuckBefore(ctx context.Context, q postgres.Querier, before time.Time, limit int) ([]Payment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+paymentCols+`
		FROM payments
		WHERE status IN ('PENDING','INITIATED','PROCESSING')
		  AND gateway_intent_id <> ''
		  AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		var (
			p                      Payment
			amount, refunded, cur string
		)
		if err := rows.Scan(
			&p.ID, &p.OrderID, &p.UserID, &amount, &cur, &p.Status,
			&p.GatewayIntentID, &p.GatewayClientSecret, &p.GatewayCustomerRef,
			&p.FailureReason, &refunded, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if p.Amount, err = money.FromString(amount, cur); err != nil {
			return nil, err
		}
		if p.RefundedTotal, err = money.FromString(refunded, cur); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpsertMethodAttachment records a payment_method.attached event.
func (Repo) UpsertMethodAttachment(ctx context.Context, q postgres.Querier, gatewayMethodID, gatewayCustomerRef string, at time.Time) error {
	_, err := q.Exec(ctx, `
		INSERT INTO payment_methods (id, gateway_method_id, gateway_customer_ref, attached, updated_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT (gateway_method_id)
		DO UPDATE SET gateway_customer_ref = EXCLUDED.gateway_customer_ref,
		              attached = TRUE, updated_at = EXCLUDED.updated_at`,
		uuid.New(), gatewayMethodID, gatewayCustomerRef, at)
	return err
}

// DetachMethod records a payment_method.detached event. Unknown method
// ids are ignored: detach of something never attached is a no-op.
func (Repo) DetachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID string, at time.Time) error {
	_, err := q.Exec(ctx, `
		UPDATE payment_methods
		SET attached = FALSE, gateway_customer_ref = '', updated_at = $2
		WHERE gateway_method_id = $1`,
		gatewayMethodID, at)
	return err
}

package refunds

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

const refundCols = `
	id, payment_id, order_id, amount, currency, reason, status,
	gateway_refund_id, requested_by, approved_by, review_note, created_at, updated_at`

func (Repo) Create(ctx context.Context, q postgres.Querier, r *Refund) error {
	_, err := q.Exec(ctx, `
		INSERT INTO refunds (`+refundCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.PaymentID, r.OrderID, r.Amount.StringAmount(), r.Amount.Currency(),
		r.Reason, r.Status, r.GatewayRefundID, r.RequestedBy, r.ApprovedBy, r.ReviewNote, r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (re Repo) Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Refund, error) {
	return re.scanOne(q.QueryRow(ctx, `SELECT `+refundCols+` FROM refunds WHERE id = $1`, id))
}

func (re Repo) GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Refund, error) {
	return re.scanOne(q.QueryRow(ctx, `SELECT `+refundCols+` FROM refunds WHERE id = $1 FOR UPDATE`, id))
}

// GetByGatewayIDForUpdate locks the refund owning a gateway refund id;
// webhook updates address refunds by external id only.
func (re Repo) GetByGatewayIDForUpdate(ctx context.Context, q postgres.Querier, gatewayRefundID string) (*Refund, error) {
	return re.scanOne(q.QueryRow(ctx, `SELECT `+refundCols+` FROM refunds WHERE gateway_refund_id = $1 FOR UPDATE`, gatewayRefundID))
}

func (Repo) scanOne(row pgx.Row) (*Refund, error) {
	var (
		r           Refund
		amount, cur string
	)
	err := row.Scan(
		&r.ID, &r.PaymentID, &r.OrderID, &amount, &cur, &r.Reason, &r.Status,
		&r.GatewayRefundID, &r.RequestedBy, &r.ApprovedBy, &r.ReviewNote, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if r.Amount, err = money.FromString(amount, cur); err != nil {
		return nil, err
	}
	return &r, nil
}

func (Repo) UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, note string, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE refunds
		SET status = $2,
		    review_note = CASE WHEN $3 = '' THEN review_note ELSE $3 END,
		    updated_at = $4
		WHERE id = $1`,
		id, status, note, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

// SetApprover records who signed off on a refund request.
func (Repo) SetApprover(ctx context.Context, q postgres.Querier, id, approver uuid.UUID, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE refunds SET approved_by = $2, updated_at = $3 WHERE id = $1`,
		id, approver, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

func (Repo) SetGatewayRef(ctx context.Context, q postgres.Querier, id uuid.UUID, gatewayRefundID string, at time.Time) error {
	ct, err := q.Exec(ctx, `
		UPDATE refunds SET gateway_refund_id = $2, updated_at = $3 WHERE id = $1`,
		id, gatewayRefundID, at)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return apperr.ErrNotFound
	}
	return nil
}

// SumOpen totals refunds that are requested or in flight. Together with
// the payment's succeeded total this bounds what may still be asked for.
func (Repo) SumOpen(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) (decimal.Decimal, error) {
	var s string
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM refunds
		WHERE payment_id = $1 AND status IN ('PENDING', 'PROCESSING')`, paymentID).Scan(&s)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(s)
}

// FindProcessingBefore returns refunds still waiting on the gateway's
// asynchronous outcome, for the reconciliation sweep.
func (re Repo) FindProcessingBefore(ctx context.Context, q postgres.Querier, before time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx, `
		SELECT id
		FROM refunds
		WHERE status = 'PROCESSING'
		  AND gateway_refund_id <> ''
		  AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (re Repo) ListByPayment(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) ([]*Refund, error) {
	rows, err := q.Query(ctx, `
		SELECT `+refundCols+` FROM refunds WHERE payment_id = $1 ORDER BY created_at`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Refund
	for rows.Next() {
		var (
			r           Refund
			amount, cur string
		)
		if err := rows.Scan(
			&r.ID, &r.PaymentID, &r.OrderID, &amount, &cur, &r.Reason, &r.Status,
			&r.GatewayRefundID, &r.RequestedBy, &r.ApprovedBy, &r.ReviewNote, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if r.Amount, err = money.FromString(amount, cur); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

package refunds

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/gateway"
	"github.com/ordercore/fulfillment/internal/money"
	"github.com/ordercore/fulfillment/internal/payments"
	"github.com/ordercore/fulfillment/internal/postgres"
)

type Store interface {
	Create(ctx context.Context, q postgres.Querier, r *Refund) error
	Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Refund, error)
	GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Refund, error)
	GetByGatewayIDForUpdate(ctx context.Context, q postgres.Querier, gatewayRefundID string) (*Refund, error)
	UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, note string, at time.Time) error
	SetApprover(ctx context.Context, q postgres.Querier, id, approver uuid.UUID, at time.Time) error
	SetGatewayRef(ctx context.Context, q postgres.Querier, id uuid.UUID, gatewayRefundID string, at time.Time) error
	SumOpen(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) (decimal.Decimal, error)
	ListByPayment(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) ([]*Refund, error)
}

// PaymentStore is the slice of the payments repo the workflow needs:
// locking the parent payment while deciding whether a refund fits.
type PaymentStore interface {
	GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*payments.Payment, error)
}

// Bookkeeper re-derives a payment's refunded total after a refund
// succeeds. Implemented by payments.Manager.
type Bookkeeper interface {
	RecomputeRefunded(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) error
}

// Workflow drives a refund from request through review to the gateway.
// Money safety lives here: a refund is only accepted while the payment's
// row lock is held and the remaining refundable amount covers it.
type Workflow struct {
	db      postgres.DB
	store   Store
	pays    PaymentStore
	books   Bookkeeper
	gw      gateway.Gateway
	timeout time.Duration
	now     func() time.Time
}

func NewWorkflow(db postgres.DB, store Store, pays PaymentStore, books Bookkeeper, gw gateway.Gateway, timeout time.Duration) *Workflow {
	return &Workflow{db: db, store: store, pays: pays, books: books, gw: gw, timeout: timeout, now: time.Now}
}

type CreateRequest struct {
	PaymentID   uuid.UUID
	Amount      money.Money
	Reason      string
	RequestedBy uuid.UUID

	// AutoApprove skips the review step and sends the refund straight to
	// the gateway once it is recorded.
	AutoApprove bool
}

// Create records a PENDING refund request. The payment row stays locked
// from the remaining-amount check through the insert, so two concurrent
// requests cannot both fit into the same remainder.
func (w *Workflow) Create(ctx context.Context, req CreateRequest) (*Refund, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validationf("amount", "must be positive, got %s", req.Amount)
	}
	if req.PaymentID == uuid.Nil {
		return nil, apperr.Validationf("payment_id", "required")
	}
	if req.Reason == "" {
		return nil, apperr.Validationf("reason", "required")
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := w.pays.GetForUpdate(ctx, tx, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if req.Amount.Currency() != p.Amount.Currency() {
		return nil, apperr.Validationf("amount", "currency %s does not match payment currency %s",
			req.Amount.Currency(), p.Amount.Currency())
	}
	if !p.CanRefund() {
		return nil, fmt.Errorf("payment %s in status %s is not refundable: %w",
			p.ID, p.Status, apperr.ErrConflict)
	}

	available, err := w.available(ctx, tx, p)
	if err != nil {
		return nil, err
	}
	if gt, err := req.Amount.GreaterThan(available); err != nil {
		return nil, err
	} else if gt {
		return nil, apperr.Validationf("amount",
			"%s exceeds refundable remainder %s", req.Amount, available)
	}

	now := w.now().UTC()
	r := &Refund{
		ID:          uuid.New(),
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Status:      StatusPending,
		RequestedBy: req.RequestedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := w.store.Create(ctx, tx, r); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if req.AutoApprove {
		// the requester stands in as the approver when review is skipped
		return w.Approve(ctx, r.ID, req.RequestedBy)
	}
	return r, nil
}

// available is what may still be requested: amount minus what already
// succeeded minus what is pending or in flight.
func (w *Workflow) available(ctx context.Context, q postgres.Querier, p *payments.Payment) (money.Money, error) {
	open, err := w.store.SumOpen(ctx, q, p.ID)
	if err != nil {
		return money.Money{}, err
	}
	openM, err := money.New(open, p.Amount.Currency())
	if err != nil {
		return money.Money{}, err
	}
	remaining, err := p.Remaining()
	if err != nil {
		return money.Money{}, err
	}
	return remaining.Sub(openM)
}

// Approve sends a reviewed refund to the gateway on behalf of approver.
// Mirrors the payment command shape: check the precondition in one
// transaction, release the locks for the remote call, then apply the
// gateway's answer in a second.
func (w *Workflow) Approve(ctx context.Context, id, approver uuid.UUID) (*Refund, error) {
	if approver == uuid.Nil {
		return nil, apperr.Validationf("approver", "required")
	}
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	r, err := w.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if r.Status != StatusPending {
		_ = tx.Rollback(ctx)
		return nil, &apperr.IllegalTransition{Entity: "refund", From: string(r.Status), To: string(StatusProcessing)}
	}
	p, err := w.pays.GetForUpdate(ctx, tx, r.PaymentID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if p.GatewayIntentID == "" {
		_ = tx.Rollback(ctx)
		return nil, apperr.Validationf("payment", "no gateway intent attached to %s", p.ID)
	}
	if err := tx.Rollback(ctx); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	res, err := w.gw.CreateRefund(cctx, p.GatewayIntentID, r.Amount, r.Reason)
	cancel()
	if err != nil {
		return r, fmt.Errorf("refund %s: %w", id, err)
	}

	tx, err = w.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	fresh, err := w.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	now := w.now().UTC()
	if err := w.store.SetApprover(ctx, tx, id, approver, now); err != nil {
		return nil, err
	}
	fresh.ApprovedBy = approver
	if err := w.store.SetGatewayRef(ctx, tx, id, res.ExternalID, now); err != nil {
		return nil, err
	}
	fresh.GatewayRefundID = res.ExternalID
	if err := w.applyLocked(ctx, tx, fresh, res.Status, ""); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return fresh, nil
}

// Reject and Cancel close a refund that never reached the gateway. The
// note records who decided and why.
func (w *Workflow) Reject(ctx context.Context, id uuid.UUID, note string) (*Refund, error) {
	return w.close(ctx, id, StatusRejected, note)
}

func (w *Workflow) Cancel(ctx context.Context, id uuid.UUID, note string) (*Refund, error) {
	return w.close(ctx, id, StatusCanceled, note)
}

func (w *Workflow) close(ctx context.Context, id uuid.UUID, target Status, note string) (*Refund, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	r, err := w.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != StatusPending {
		return nil, &apperr.IllegalTransition{Entity: "refund", From: string(r.Status), To: string(target)}
	}
	if err := w.store.UpdateStatus(ctx, tx, id, target, note, w.now().UTC()); err != nil {
		return nil, err
	}
	r.Status = target
	r.ReviewNote = note
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// ApplyGatewayUpdate applies an externally reported refund status inside
// the caller's transaction. Returns ErrNotFound when no stored refund
// owns the gateway id yet; the webhook processor parks such events for
// retry because the refund row may simply not have committed.
func (w *Workflow) ApplyGatewayUpdate(ctx context.Context, q postgres.Querier, gatewayRefundID, extStatus, failureReason string) error {
	r, err := w.store.GetByGatewayIDForUpdate(ctx, q, gatewayRefundID)
	if err != nil {
		return err
	}
	return w.applyLocked(ctx, q, r, extStatus, failureReason)
}

func (w *Workflow) applyLocked(ctx context.Context, q postgres.Querier, r *Refund, extStatus, failureReason string) error {
	target := FromGatewayStatus(extStatus)
	if target == r.Status {
		return nil
	}
	if !CanTransitionTo(r.Status, target) {
		log.Printf("refund %s: ignoring gateway status %q, current %s", r.ID, extStatus, r.Status)
		return nil
	}
	// a failed refund keeps the gateway's reason in the note
	note := ""
	if target == StatusFailed {
		note = failureReason
	}
	if err := w.store.UpdateStatus(ctx, q, r.ID, target, note, w.now().UTC()); err != nil {
		return err
	}
	if note != "" {
		r.ReviewNote = note
	}
	r.Status = target
	if target == StatusSucceeded {
		return w.books.RecomputeRefunded(ctx, q, r.PaymentID)
	}
	return nil
}

// SyncWithGateway asks the processor for a refund's authoritative status
// and applies it. Used by the reconciliation sweep for refunds stuck in
// PROCESSING past the webhook horizon.
func (w *Workflow) SyncWithGateway(ctx context.Context, id uuid.UUID) error {
	r, err := w.store.Get(ctx, w.db, id)
	if err != nil {
		return err
	}
	if r.GatewayRefundID == "" {
		return apperr.Validationf("refund", "no gateway refund attached to %s", id)
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	extStatus, err := w.gw.GetRefund(cctx, r.GatewayRefundID)
	cancel()
	if err != nil {
		return fmt.Errorf("sync refund %s: %w", id, err)
	}

	tx, err := w.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := w.ApplyGatewayUpdate(ctx, tx, r.GatewayRefundID, extStatus, ""); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Workflow) Get(ctx context.Context, id uuid.UUID) (*Refund, error) {
	return w.store.Get(ctx, w.db, id)
}

func (w *Workflow) ListByPayment(ctx context.Context, paymentID uuid.UUID) ([]*Refund, error) {
	return w.store.ListByPayment(ctx, w.db, paymentID)
}

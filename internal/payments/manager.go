package payments

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
	"github.com/ordercore/fulfillment/internal/postgres"
)

// Store is the persistence surface the manager needs; Repo implements it
// over pgx.
type Store interface {
	Create(ctx context.Context, q postgres.Querier, p *Payment) error
	Get(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Payment, error)
	GetForUpdate(ctx context.Context, q postgres.Querier, id uuid.UUID) (*Payment, error)
	GetByIntentForUpdate(ctx context.Context, q postgres.Querier, intentID string) (*Payment, error)
	UpdateStatus(ctx context.Context, q postgres.Querier, id uuid.UUID, status Status, failureReason string, at time.Time) error
	SetGatewayRefs(ctx context.Context, q postgres.Querier, id uuid.UUID, intentID, clientSecret, customerRef string, at time.Time) error
	SumSucceededRefunds(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) (decimal.Decimal, error)
	SetRefundedTotal(ctx context.Context, q postgres.Querier, id uuid.UUID, total money.Money, at time.Time) error
	UpsertMethodAttachment(ctx context.Context, q postgres.Querier, gatewayMethodID, gatewayCustomerRef string, at time.Time) error
	DetachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID string, at time.Time) error
}

// Manager drives the payment lifecycle. Local commands and webhook
// merges both funnel through the same transition validation, and the
// gateway's reported status is authoritative over what the caller asked
// for.
type Manager struct {
	db      postgres.DB
	store   Store
	gw      gateway.Gateway
	timeout time.Duration
	now     func() time.Time
}

func NewManager(db postgres.DB, store Store, gw gateway.Gateway, timeout time.Duration) *Manager {
	return &Manager{db: db, store: store, gw: gw, timeout: timeout, now: time.Now}
}

type ProcessRequest struct {
	OrderID     uuid.UUID
	UserID      uuid.UUID
	Amount      money.Money
	CustomerRef string
}

// ProcessPayment persists a PENDING payment, then asks the gateway for a
// payment intent in a second step so no database transaction spans the
// remote call. If the gateway call fails the payment stays PENDING and
// the error is surfaced; nothing is guessed into FAILED.
func (m *Manager) ProcessPayment(ctx context.Context, req ProcessRequest) (*Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validationf("amount", "must be positive, got %s", req.Amount)
	}
	if req.OrderID == uuid.Nil {
		return nil, apperr.Validationf("order_id", "required")
	}
	if req.UserID == uuid.Nil {
		return nil, apperr.Validationf("user_id", "required")
	}

	now := m.now().UTC()
	p := &Payment{
		ID:            uuid.New(),
		OrderID:       req.OrderID,
		UserID:        req.UserID,
		Amount:        req.Amount,
		Status:        StatusPending,
		RefundedTotal: money.Zero(req.Amount.Currency()),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := m.store.Create(ctx, tx, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	res, err := m.createIntent(ctx, req)
	if err != nil {
		return p, fmt.Errorf("process payment %s: %w", p.ID, err)
	}

	tx, err = m.db.Begin(ctx)
	if err != nil {
		return p, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	fresh, err := m.store.GetForUpdate(ctx, tx, p.ID)
	if err != nil {
		return p, err
	}
	now = m.now().UTC()
	if err := m.store.SetGatewayRefs(ctx, tx, p.ID, res.ExternalID, res.ClientSecret, req.CustomerRef, now); err != nil {
		return p, err
	}
	fresh.GatewayIntentID = res.ExternalID
	fresh.GatewayClientSecret = res.ClientSecret
	if err := m.mergeLocked(ctx, tx, fresh, res.Status, "", false); err != nil {
		return p, err
	}
	if err := tx.Commit(ctx); err != nil {
		return p, err
	}
	return fresh, nil
}

func (m *Manager) createIntent(ctx context.Context, req ProcessRequest) (gateway.IntentResult, error) {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.gw.CreatePaymentIntent(cctx, req.Amount, req.CustomerRef)
}

// Confirm, Cancel and Capture share one shape: assert the intended
// transition against the freshly read stored status, call out, then
// apply whatever status the gateway actually reported.
func (m *Manager) Confirm(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return m.command(ctx, id, StatusSettled, m.gw.ConfirmPaymentIntent)
}

func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return m.command(ctx, id, StatusCancelled, m.gw.CancelPaymentIntent)
}

func (m *Manager) Capture(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return m.command(ctx, id, StatusCaptured, m.gw.CapturePaymentIntent)
}

func (m *Manager) command(ctx context.Context, id uuid.UUID, intended Status,
	call func(ctx context.Context, externalID string) (string, error)) (*Payment, error) {

	// precondition check against stored state, inside its own tx
	tx, err := m.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	p, err := m.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if p.GatewayIntentID == "" {
		_ = tx.Rollback(ctx)
		return nil, apperr.Validationf("payment", "no gateway intent attached to %s", id)
	}
	if err := AssertTransition(p.Status, intended); err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	// release the row lock before the remote call
	if err := tx.Rollback(ctx); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	extStatus, err := call(cctx, p.GatewayIntentID)
	cancel()
	if err != nil {
		return p, fmt.Errorf("payment %s: %w", id, err)
	}

	// second tx: re-read and apply the gateway's answer
	tx, err = m.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	fresh, err := m.store.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := m.mergeLocked(ctx, tx, fresh, extStatus, "", false); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return fresh, nil
}

// MergeGatewayStatus applies an externally reported intent status inside
// the caller's transaction. Used by the webhook processor and the
// reconciliation sweep; duplicate and stale reports are ignored.
func (m *Manager) MergeGatewayStatus(ctx context.Context, q postgres.Querier, intentID, extStatus, failureReason string) error {
	p, err := m.store.GetByIntentForUpdate(ctx, q, intentID)
	if err != nil {
		return err
	}
	return m.mergeLocked(ctx, q, p, extStatus, failureReason, true)
}

// mergeLocked requires the caller to hold the payment's row lock. When
// external is true an inapplicable report is skipped (stale or replayed
// event); when false it means a local command lost a race and the caller
// gets Conflict.
func (m *Manager) mergeLocked(ctx context.Context, q postgres.Querier, p *Payment, extStatus, failureReason string, external bool) error {
	target, known := FromGatewayStatus(extStatus)
	if !known {
		log.Printf("payment %s: unknown gateway status %q, leaving %s as is", p.ID, extStatus, p.Status)
		return nil
	}

	applied, reason := mergeDecision(p.Status, target)
	if !applied {
		if reason == mergeIllegal && !external {
			return fmt.Errorf("payment %s: %s -> %s: %w", p.ID, p.Status, target, apperr.ErrConflict)
		}
		if reason != mergeNoop {
			log.Printf("payment %s: ignoring gateway status %q (%s), current %s", p.ID, extStatus, reason, p.Status)
		}
		return nil
	}

	if err := m.store.UpdateStatus(ctx, q, p.ID, target, failureReason, m.now().UTC()); err != nil {
		return err
	}
	p.Status = target
	if failureReason != "" {
		p.FailureReason = failureReason
	}
	return nil
}

const (
	mergeNoop    = "noop"
	mergeStale   = "stale"
	mergeIllegal = "illegal"
)

// mergeDecision is the pure merge rule: same-state reports are no-ops,
// and a report that would take fundsTransferred from true back to false
// is stale by definition and never applied.
func mergeDecision(current, incoming Status) (bool, string) {
	if incoming == current {
		return false, mergeNoop
	}
	if current.FundsTransferred() && !incoming.FundsTransferred() {
		return false, mergeStale
	}
	if !CanTransitionTo(current, incoming) {
		return false, mergeIllegal
	}
	return true, ""
}

// RecomputeRefunded re-derives the refunded total from the refunds table
// and advances the payment's refund status when warranted. Must run in
// the same transaction as the refund status change that triggered it;
// the caller holds no payment lock yet.
func (m *Manager) RecomputeRefunded(ctx context.Context, q postgres.Querier, paymentID uuid.UUID) error {
	p, err := m.store.GetForUpdate(ctx, q, paymentID)
	if err != nil {
		return err
	}

	sum, err := m.store.SumSucceededRefunds(ctx, q, paymentID)
	if err != nil {
		return err
	}
	total, err := money.New(sum, p.Amount.Currency())
	if err != nil {
		return err
	}
	if gt, err := total.GreaterThan(p.Amount); err != nil {
		return err
	} else if gt {
		return fmt.Errorf("payment %s: refunded %s exceeds amount %s: %w",
			p.ID, total, p.Amount, apperr.ErrConflict)
	}

	now := m.now().UTC()
	if err := m.store.SetRefundedTotal(ctx, q, paymentID, total, now); err != nil {
		return err
	}

	var target Status
	switch {
	case total.Equal(p.Amount):
		target = StatusRefunded
	case total.IsPositive():
		target = StatusPartiallyRefunded
	default:
		return nil
	}
	if target == p.Status || !CanTransitionTo(p.Status, target) {
		return nil
	}
	return m.store.UpdateStatus(ctx, q, paymentID, target, "", now)
}

// AttachMethod and DetachMethod keep the stored payment-method linkage in
// step with payment_method.* webhook events.
func (m *Manager) AttachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID, gatewayCustomerRef string) error {
	return m.store.UpsertMethodAttachment(ctx, q, gatewayMethodID, gatewayCustomerRef, m.now().UTC())
}

func (m *Manager) DetachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID string) error {
	return m.store.DetachMethod(ctx, q, gatewayMethodID, m.now().UTC())
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	return m.store.Get(ctx, m.db, id)
}

// Reconcile asks the gateway for the authoritative status of one stuck
// payment and applies it through the normal merge path.
func (m *Manager) Reconcile(ctx context.Context, p *Payment) error {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	extStatus, err := m.gw.GetPaymentIntent(cctx, p.GatewayIntentID)
	cancel()
	if err != nil {
		return fmt.Errorf("reconcile payment %s: %w", p.ID, err)
	}

	tx, err := m.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := m.MergeGatewayStatus(ctx, tx, p.GatewayIntentID, extStatus, ""); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

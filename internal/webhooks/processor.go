package webhooks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ordercore/fulfillment/internal/apperr"
	"github.com/ordercore/fulfillment/internal/postgres"
)

// PaymentMerger is the slice of the payments manager the processor
// drives: intent status merges and payment-method bookkeeping.
type PaymentMerger interface {
	MergeGatewayStatus(ctx context.Context, q postgres.Querier, intentID, extStatus, failureReason string) error
	AttachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID, gatewayCustomerRef string) error
	DetachMethod(ctx context.Context, q postgres.Querier, gatewayMethodID string) error
}

type RefundApplier interface {
	ApplyGatewayUpdate(ctx context.Context, q postgres.Querier, gatewayRefundID, extStatus, failureReason string) error
}

type LedgerStore interface {
	Record(ctx context.Context, q postgres.Querier, eventID, eventType, payloadHash string, at time.Time) (bool, error)
}

// Processor verifies, dedupes and routes gateway webhooks. The ledger
// insert and the routed effect share one transaction: an event is marked
// seen exactly when its effect commits, never before.
type Processor struct {
	db     postgres.DB
	ledger LedgerStore
	pays   PaymentMerger
	refs   RefundApplier
	retry  RetryQueue
	secret string
	now    func() time.Time
}

func NewProcessor(db postgres.DB, ledger LedgerStore, pays PaymentMerger, refs RefundApplier, retry RetryQueue, secret string) *Processor {
	return &Processor{db: db, ledger: ledger, pays: pays, refs: refs, retry: retry, secret: secret, now: time.Now}
}

// Handle is the ingress path: verify the signature over the raw bytes,
// then process. An invalid signature is rejected before anything is
// parsed or stored.
func (p *Processor) Handle(ctx context.Context, body []byte, signature string) error {
	if err := Verify(p.secret, body, signature); err != nil {
		return err
	}
	return p.process(ctx, body, true)
}

// Replay reprocesses a parked event from the retry queue. The signature
// was already verified when the event first arrived. A refund that is
// still missing surfaces as ErrNotFound here; the retry worker owns the
// attempt count, so the replay path never parks a fresh task.
func (p *Processor) Replay(ctx context.Context, body []byte) error {
	return p.process(ctx, body, false)
}

func (p *Processor) process(ctx context.Context, body []byte, park bool) error {
	e, err := Parse(body)
	if err != nil {
		return err
	}

	tx, err := p.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	inserted, err := p.ledger.Record(ctx, tx, e.ID, e.Type, HashPayload(body), p.now().UTC())
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("webhook: duplicate event %s (%s), skipping", e.ID, e.Type)
		return nil
	}

	switch {
	case strings.HasPrefix(e.Type, "payment_intent."):
		err = p.pays.MergeGatewayStatus(ctx, tx, e.ObjectID, intentStatus(e), e.FailureReason)

	case strings.HasPrefix(e.Type, "refund."):
		err = p.refs.ApplyGatewayUpdate(ctx, tx, e.ObjectID, e.Status, e.FailureReason)
		if park && errors.Is(err, apperr.ErrNotFound) {
			// the refund row may simply not have committed yet; park the
			// event and ack so the gateway stops resending
			_ = tx.Rollback(ctx)
			if qerr := p.retry.Enqueue(ctx, RetryTask{EventID: e.ID, Body: body, EnqueueAt: p.now().UTC()}); qerr != nil {
				return fmt.Errorf("park event %s: %w", e.ID, qerr)
			}
			log.Printf("webhook: refund %s not found for event %s, parked for retry", e.ObjectID, e.ID)
			return nil
		}

	case e.Type == "payment_method.attached":
		err = p.pays.AttachMethod(ctx, tx, e.ObjectID, e.CustomerRef)

	case e.Type == "payment_method.detached":
		err = p.pays.DetachMethod(ctx, tx, e.ObjectID)

	default:
		// unhandled types still land in the ledger so replays stay cheap
		log.Printf("webhook: ignoring event type %s (%s)", e.Type, e.ID)
	}
	if err != nil {
		return fmt.Errorf("event %s (%s): %w", e.ID, e.Type, err)
	}
	return tx.Commit(ctx)
}

// intentStatus picks the status to merge for a payment_intent event. A
// failed attempt parks the intent back at requires_payment_method, so
// the event type, not the object status, is what says it failed.
func intentStatus(e Event) string {
	if e.Type == "payment_intent.payment_failed" {
		return "payment_failed"
	}
	if e.Status != "" {
		return e.Status
	}
	return strings.TrimPrefix(e.Type, "payment_intent.")
}

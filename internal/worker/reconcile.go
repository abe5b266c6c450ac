package worker

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/ordercore/fulfillment/internal/payments"
	"github.com/ordercore/fulfillment/internal/postgres"
)

// StuckPaymentFinder and StuckRefundFinder are the repo slices the sweep
// reads; payments.Repo and refunds.Repo implement them.
type StuckPaymentFinder interface {
	FindStuckBefore(ctx context.Context, q postgres.Querier, before time.Time, limit int) ([]payments.Payment, error)
}

type StuckRefundFinder interface {
	FindProcessingBefore(ctx context.Context, q postgres.Querier, before time.Time, limit int) ([]uuid.UUID, error)
}

type PaymentReconciler interface {
	Reconcile(ctx context.Context, p *payments.Payment) error
}

type RefundSyncer interface {
	SyncWithGateway(ctx context.Context, id uuid.UUID) error
}

// Reconciler periodically asks the gateway for the truth about payments
// and refunds that have waited past the webhook horizon. Webhooks are
// the fast path; this sweep is the guarantee.
type Reconciler struct {
	db          postgres.DB
	stuckPays   StuckPaymentFinder
	stuckRefs   StuckRefundFinder
	pays        PaymentReconciler
	refs        RefundSyncer
	interval    time.Duration
	stuckAfter  time.Duration
	batchSize   int
}

func NewReconciler(db postgres.DB, stuckPays StuckPaymentFinder, stuckRefs StuckRefundFinder,
	pays PaymentReconciler, refs RefundSyncer, interval, stuckAfter time.Duration) *Reconciler {
	return &Reconciler{
		db: db, stuckPays: stuckPays, stuckRefs: stuckRefs,
		pays: pays, refs: refs,
		interval: interval, stuckAfter: stuckAfter, batchSize: 100,
	}
}

func (r *Reconciler) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

func (r *Reconciler) sweep(ctx context.Context) {
	before := time.Now().UTC().Add(-r.stuckAfter)

	stuck, err := r.stuckPays.FindStuckBefore(ctx, r.db, before, r.batchSize)
	if err != nil {
		log.Printf("reconcile: list stuck payments: %v", err)
	}
	for i := range stuck {
		if err := r.pays.Reconcile(ctx, &stuck[i]); err != nil {
			log.Printf("reconcile: payment %s: %v", stuck[i].ID, err)
		}
	}

	ids, err := r.stuckRefs.FindProcessingBefore(ctx, r.db, before, r.batchSize)
	if err != nil {
		log.Printf("reconcile: list stuck refunds: %v", err)
		return
	}
	for _, id := range ids {
		if err := r.refs.SyncWithGateway(ctx, id); err != nil {
			log.Printf("reconcile: refund %s: %v", id, err)
		}
	}
	if len(stuck) > 0 || len(ids) > 0 {
		log.Printf("reconcile: swept %d payments, %d refunds", len(stuck), len(ids))
	}
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	kafkago "github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"github.com/ordercore/fulfillment/internal/config"
	"github.com/ordercore/fulfillment/internal/gateway"
	kafkax "github.com/ordercore/fulfillment/internal/kafka"
	"github.com/ordercore/fulfillment/internal/notify"
	"github.com/ordercore/fulfillment/internal/payments"
	"github.com/ordercore/fulfillment/internal/postgres"
	"github.com/ordercore/fulfillment/internal/redisx"
	"github.com/ordercore/fulfillment/internal/refunds"
	"github.com/ordercore/fulfillment/internal/webhooks"
	"github.com/ordercore/fulfillment/internal/worker"
)

// The worker runs everything that is not request-driven: the webhook
// retry drainer, the gateway reconciliation sweep, and the order-event
// consumer that fans lifecycle events out to customers.
func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	gw := gateway.NewSimulator()
	payMgr := payments.NewManager(db, payments.Repo{}, gw, cfg.GatewayTimeout)
	refundWf := refunds.NewWorkflow(db, refunds.Repo{}, payments.Repo{}, payMgr, gw, cfg.GatewayTimeout)

	queue := webhooks.NewRedisRetryQueue(rdb)
	processor := webhooks.NewProcessor(db, webhooks.Ledger{}, payMgr, refundWf, queue, cfg.WebhookSecret)
	retrier := webhooks.NewRetryWorker(queue, processor.Replay, cfg.WebhookRetryInterval, cfg.WebhookRetryMax)

	reconciler := worker.NewReconciler(db, payments.Repo{}, refunds.Repo{},
		payMgr, refundWf, cfg.ReconcileInterval, cfg.ReconcileAfter)

	events := kafkax.NewConsumer(cfg.KafkaBrokers, "fulfillment-notify", notify.TopicOrderEvents, 4)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return retrier.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error { return events.Start(gctx, notifyCustomer) })

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		log.Println("shutting down...")
		cancel()
	case <-gctx.Done():
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("worker: %v", err)
	}
}

// notifyCustomer is where a mail or push integration would hang off the
// order event stream. For now it logs the delivery.
func notifyCustomer(ctx context.Context, m kafkago.Message) error {
	var ev notify.Envelope
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		log.Printf("notify: drop malformed event at offset %d: %v", m.Offset, err)
		return nil
	}
	p, err := kafkax.UnwrapPayload[notify.OrderEventPayload](ev.Payload)
	if err != nil {
		log.Printf("notify: drop event %s with bad payload: %v", ev.EventID, err)
		return nil
	}
	log.Printf("notify: %s order=%s user=%s status=%s", ev.EventType, p.OrderID, p.UserID, p.Status)
	return nil
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ordercore/fulfillment/internal/config"
	"github.com/ordercore/fulfillment/internal/gateway"
	"github.com/ordercore/fulfillment/internal/httpx"
	kafkax "github.com/ordercore/fulfillment/internal/kafka"
	"github.com/ordercore/fulfillment/internal/notify"
	"github.com/ordercore/fulfillment/internal/orders"
	"github.com/ordercore/fulfillment/internal/payments"
	"github.com/ordercore/fulfillment/internal/postgres"
	"github.com/ordercore/fulfillment/internal/redisx"
	"github.com/ordercore/fulfillment/internal/refunds"
	"github.com/ordercore/fulfillment/internal/tracking"
	"github.com/ordercore/fulfillment/internal/webhooks"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producers, one per topic
	eventsProd := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicOrderEvents, 1024)
	eventsProd.Start(ctx)
	releaseProd := kafkax.NewProducer(cfg.KafkaBrokers, notify.TopicInventoryRelease, 256)
	releaseProd.Start(ctx)

	// Payment gateway. The simulator stands in until a processor
	// integration is configured; everything upstream only sees the
	// Gateway interface.
	gw := gateway.NewSimulator()

	orderSvc := orders.NewService(db, orders.Repo{}, tracking.Repo{},
		&orders.RedisStatusCache{Client: rdb},
		&notify.KafkaNotifier{Producer: eventsProd, Service: cfg.ServiceName},
		&notify.KafkaInventoryReleaser{Producer: releaseProd, Service: cfg.ServiceName},
	)
	payMgr := payments.NewManager(db, payments.Repo{}, gw, cfg.GatewayTimeout)
	refundWf := refunds.NewWorkflow(db, refunds.Repo{}, payments.Repo{}, payMgr, gw, cfg.GatewayTimeout)
	processor := webhooks.NewProcessor(db, webhooks.Ledger{}, payMgr, refundWf,
		webhooks.NewRedisRetryQueue(rdb), cfg.WebhookSecret)

	router := httpx.NewRouter()
	(&httpx.OrdersHandler{Svc: orderSvc}).Register(router)
	(&httpx.PaymentsHandler{Mgr: payMgr}).Register(router)
	(&httpx.RefundsHandler{Wf: refundWf}).Register(router)
	(&httpx.WebhooksHandler{Proc: processor}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	// graceful shutdown
	go func() {
		log.Printf("HTTP listening at %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	eventsProd.Close()
	releaseProd.Close()
	cancel()
	eventsProd.WaitClosed()
	releaseProd.WaitClosed()
}

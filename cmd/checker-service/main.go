package main

import (
	"context"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/orderflow/order-validation/internal/checker/application"
	checkerkafka "github.com/orderflow/order-validation/internal/checker/infrastructure/kafka"
	checkerredis "github.com/orderflow/order-validation/internal/checker/infrastructure/redis"
	"github.com/orderflow/order-validation/internal/config"
	platformkafka "github.com/orderflow/order-validation/internal/platform/kafka"
	"github.com/orderflow/order-validation/pkg/idempotency"
	"github.com/orderflow/order-validation/pkg/logging"
	"github.com/orderflow/order-validation/pkg/shutdown"
	"github.com/orderflow/order-validation/pkg/tracing"
)

func main() {
	log := logging.New("checker-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "checker-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	store := checkerredis.NewStore(rdb)
	idem := idempotency.NewStore(rdb, 10*time.Minute)
	svc := application.NewService(log, store, store)

	bus := platformkafka.NewBus(cfg.KafkaBrokers)
	err = bus.EnsureTopics(ctx,
		cfg.CustomerCheckRequest, cfg.CustomerCheckResponse,
		cfg.StockCheckRequest, cfg.StockCheckResponse,
	)
	if err != nil {
		log.Error("topic setup failed", "err", err)
		os.Exit(1)
	}

	customerWriter := bus.Writer(cfg.CustomerCheckResponse)
	defer customerWriter.Close()
	stockWriter := bus.Writer(cfg.StockCheckResponse)
	defer stockWriter.Close()

	customerResponder := checkerkafka.NewCustomerResponder(log,
		bus.Reader(cfg.CustomerCheckRequest, "checker-service"), customerWriter, idem, svc)
	stockResponder := checkerkafka.NewStockResponder(log,
		bus.Reader(cfg.StockCheckRequest, "checker-service"), stockWriter, idem, svc)

	go func() {
		if err := customerResponder.Run(ctx); err != nil {
			log.Error("customer responder stopped", "err", err)
			cancel()
		}
	}()
	go func() {
		if err := stockResponder.Run(ctx); err != nil {
			log.Error("stock responder stopped", "err", err)
			cancel()
		}
	}()

	log.Info("checker-service running")
	<-ctx.Done()
	log.Info("checker-service shutdown")
}

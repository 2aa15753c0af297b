package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orderflow/order-validation/internal/config"
	"github.com/orderflow/order-validation/internal/order/application"
	orderhttp "github.com/orderflow/order-validation/internal/order/infrastructure/http"
	orderkafka "github.com/orderflow/order-validation/internal/order/infrastructure/kafka"
	platformkafka "github.com/orderflow/order-validation/internal/platform/kafka"
	orderpg "github.com/orderflow/order-validation/internal/order/infrastructure/postgres"
	"github.com/orderflow/order-validation/pkg/logging"
	"github.com/orderflow/order-validation/pkg/outbox"
	"github.com/orderflow/order-validation/pkg/shutdown"
	"github.com/orderflow/order-validation/pkg/tracing"
)

func main() {
	log := logging.New("order-service")

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	cfg := config.Load()

	tp, err := tracing.Init(ctx, "order-service", cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	repo := orderpg.NewRepository(log, pool)
	if err := repo.EnsureSchema(ctx); err != nil {
		log.Error("schema setup failed", "err", err)
		os.Exit(1)
	}

	bus := platformkafka.NewBus(cfg.KafkaBrokers)
	err = bus.EnsureTopics(ctx,
		cfg.CustomerCheckRequest, cfg.CustomerCheckResponse,
		cfg.StockCheckRequest, cfg.StockCheckResponse,
		cfg.OrderEventsTopic,
	)
	if err != nil {
		log.Error("topic setup failed", "err", err)
		os.Exit(1)
	}

	customerWriter := bus.Writer(cfg.CustomerCheckRequest)
	defer customerWriter.Close()
	stockWriter := bus.Writer(cfg.StockCheckRequest)
	defer stockWriter.Close()

	customers := orderkafka.NewCustomerGateway(log, customerWriter,
		bus.Reader(cfg.CustomerCheckResponse, cfg.ConsumerGroup), cfg.CheckTimeout)
	stock := orderkafka.NewStockGateway(log, stockWriter,
		bus.Reader(cfg.StockCheckResponse, cfg.ConsumerGroup), cfg.CheckTimeout)

	go func() {
		if err := customers.Run(ctx); err != nil {
			log.Error("customer correlator stopped", "err", err)
			cancel()
		}
	}()
	go func() {
		if err := stock.Run(ctx); err != nil {
			log.Error("stock correlator stopped", "err", err)
			cancel()
		}
	}()

	eventsWriter := bus.EventWriter()
	defer eventsWriter.Close()
	dispatch := outbox.NewDispatcher(log, eventsWriter, cfg.OrderEventsTopic)
	relay := outbox.NewRelay(log, orderpg.NewOutboxStore(log, pool), dispatch, "order-service-relay")
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped", "err", err)
		}
	}()

	svc := application.NewService(log, repo, customers, stock)
	handler := orderhttp.NewHandler(log, svc)

	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.Handler())
	r.Mount("/", handler.Routes())
	srv := &http.Server{
		Addr:        cfg.HTTPAddr,
		Handler:     r,
		ReadTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("order-service shutdown complete")
}

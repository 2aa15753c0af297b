package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/orderflow/order-validation/internal/order/application"
	"github.com/orderflow/order-validation/internal/order/domain"
	"github.com/orderflow/order-validation/pkg/correlation"
	"github.com/orderflow/order-validation/pkg/metrics"
	"github.com/orderflow/order-validation/pkg/tracing"
)

// StockGateway is the stock-availability counterpart of CustomerGateway.
type StockGateway struct {
	log     *slog.Logger
	writer  messageWriter
	reader  messageReader
	waits   *correlation.Table[domain.StockCheckResponse]
	timeout time.Duration
}

func NewStockGateway(log *slog.Logger, writer messageWriter, reader messageReader, timeout time.Duration) *StockGateway {
	return &StockGateway{
		log:     log,
		writer:  writer,
		reader:  reader,
		waits:   correlation.NewTable[domain.StockCheckResponse](),
		timeout: timeout,
	}
}

func (g *StockGateway) CheckStock(ctx context.Context, items []domain.StockCheckItem) (application.CheckResult, error) {
	id := uuid.NewString()

	ch, cancel := g.waits.Register(id)
	defer cancel()

	value, err := json.Marshal(domain.StockCheckRequest{CorrelationID: id, Items: items})
	if err != nil {
		return application.CheckResult{}, fmt.Errorf("encode stock check request: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(id),
		Value:   value,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
	}
	if err := g.writer.WriteMessages(ctx, msg); err != nil {
		return application.CheckResult{}, &application.TransportError{Check: application.CheckStock, Err: err}
	}
	metrics.StockCheckPublished.Inc()
	g.log.Debug("stock check published", "correlation_id", id, "items", len(items))

	resp, err := g.waits.Await(ctx, id, ch, g.timeout)
	if err != nil {
		if errors.Is(err, correlation.ErrTimeout) {
			return application.CheckResult{}, &application.TimeoutError{Check: application.CheckStock}
		}
		return application.CheckResult{}, err
	}
	reason := resp.Reason
	if reason == "" && !resp.IsStockAvailable {
		reason = "insufficient stock"
	}
	return application.CheckResult{OK: resp.IsStockAvailable, Reason: reason}, nil
}

// Run consumes the stock check response topic until ctx ends.
func (g *StockGateway) Run(ctx context.Context) error {
	return consumeResponses(ctx, g.log, g.reader, func(value []byte) {
		var resp domain.StockCheckResponse
		if err := json.Unmarshal(value, &resp); err != nil {
			g.log.Error("bad stock check response", "err", err)
			return
		}
		if g.waits.Resolve(resp.CorrelationID, resp) {
			metrics.StockCheckResponses.Inc()
			return
		}
		g.log.Debug("dropping unmatched stock check response", "correlation_id", resp.CorrelationID)
	})
}

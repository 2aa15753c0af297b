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

// CustomerGateway publishes customer check requests and correlates the
// responses arriving on the response topic. One Run loop serves all
// concurrent CheckCustomer calls.
type CustomerGateway struct {
	log     *slog.Logger
	writer  messageWriter
	reader  messageReader
	waits   *correlation.Table[domain.CustomerCheckResponse]
	timeout time.Duration
}

func NewCustomerGateway(log *slog.Logger, writer messageWriter, reader messageReader, timeout time.Duration) *CustomerGateway {
	return &CustomerGateway{
		log:     log,
		writer:  writer,
		reader:  reader,
		waits:   correlation.NewTable[domain.CustomerCheckResponse](),
		timeout: timeout,
	}
}

func (g *CustomerGateway) CheckCustomer(ctx context.Context, customerID int64) (application.CheckResult, error) {
	id := uuid.NewString()

	// Register before publishing so a response cannot beat the wait.
	ch, cancel := g.waits.Register(id)
	defer cancel()

	value, err := json.Marshal(domain.CustomerCheckRequest{CorrelationID: id, CustomerID: customerID})
	if err != nil {
		return application.CheckResult{}, fmt.Errorf("encode customer check request: %w", err)
	}
	msg := kafka.Message{
		Key:     []byte(id),
		Value:   value,
		Headers: tracing.InjectKafkaHeaders(ctx, nil),
	}
	if err := g.writer.WriteMessages(ctx, msg); err != nil {
		return application.CheckResult{}, &application.TransportError{Check: application.CheckCustomer, Err: err}
	}
	metrics.CustomerCheckPublished.Inc()
	g.log.Debug("customer check published", "correlation_id", id, "customer_id", customerID)

	resp, err := g.waits.Await(ctx, id, ch, g.timeout)
	if err != nil {
		if errors.Is(err, correlation.ErrTimeout) {
			return application.CheckResult{}, &application.TimeoutError{Check: application.CheckCustomer}
		}
		return application.CheckResult{}, err
	}
	reason := resp.Reason
	if reason == "" && !resp.IsValid {
		reason = "customer is invalid"
	}
	return application.CheckResult{OK: resp.IsValid, Reason: reason}, nil
}

// Run consumes the customer check response topic until ctx ends.
func (g *CustomerGateway) Run(ctx context.Context) error {
	return consumeResponses(ctx, g.log, g.reader, func(value []byte) {
		var resp domain.CustomerCheckResponse
		if err := json.Unmarshal(value, &resp); err != nil {
			g.log.Error("bad customer check response", "err", err)
			return
		}
		if g.waits.Resolve(resp.CorrelationID, resp) {
			metrics.CustomerCheckResponses.Inc()
			return
		}
		g.log.Debug("dropping unmatched customer check response", "correlation_id", resp.CorrelationID)
	})
}

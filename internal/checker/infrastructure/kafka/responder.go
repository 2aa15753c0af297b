package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/order-validation/internal/checker/application"
	"github.com/orderflow/order-validation/internal/order/domain"
	"github.com/orderflow/order-validation/pkg/idempotency"
	"github.com/orderflow/order-validation/pkg/tracing"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// replyFunc decodes one request and produces the reply payload and key.
type replyFunc func(ctx context.Context, value []byte) (payload []byte, key string, err error)

// Responder consumes a check request topic and answers on the paired
// response topic. Redeliveries are skipped through the idempotency store;
// a failed lookup produces no reply so the requester times out instead of
// getting a wrong answer.
type Responder struct {
	log    *slog.Logger
	reader messageReader
	writer messageWriter
	idem   *idempotency.Store
	tracer trace.Tracer
	reply  replyFunc
	name   string
}

func NewCustomerResponder(log *slog.Logger, reader messageReader, writer messageWriter, idem *idempotency.Store, svc *application.Service) *Responder {
	return &Responder{
		log:    log,
		reader: reader,
		writer: writer,
		idem:   idem,
		tracer: otel.Tracer("checker-service"),
		name:   "AnswerCustomerCheck",
		reply: func(ctx context.Context, value []byte) ([]byte, string, error) {
			var req domain.CustomerCheckRequest
			if err := json.Unmarshal(value, &req); err != nil {
				return nil, "", err
			}
			resp, err := svc.AnswerCustomerCheck(ctx, req)
			if err != nil {
				return nil, "", err
			}
			payload, err := json.Marshal(resp)
			return payload, req.CorrelationID, err
		},
	}
}

func NewStockResponder(log *slog.Logger, reader messageReader, writer messageWriter, idem *idempotency.Store, svc *application.Service) *Responder {
	return &Responder{
		log:    log,
		reader: reader,
		writer: writer,
		idem:   idem,
		tracer: otel.Tracer("checker-service"),
		name:   "AnswerStockCheck",
		reply: func(ctx context.Context, value []byte) ([]byte, string, error) {
			var req domain.StockCheckRequest
			if err := json.Unmarshal(value, &req); err != nil {
				return nil, "", err
			}
			resp, err := svc.AnswerStockCheck(ctx, req)
			if err != nil {
				return nil, "", err
			}
			payload, err := json.Marshal(resp)
			return payload, req.CorrelationID, err
		},
	}
}

func (c *Responder) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if c.idem != nil {
			key := c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
			seen, err := c.idem.Seen(ctx, key)
			if err != nil {
				c.log.Error("idempotency check failed", "err", err)
			} else if seen {
				c.log.Debug("duplicate request skipped", "key", key)
				_ = c.reader.CommitMessages(ctx, msg)
				continue
			}
		}

		msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
		msgCtx, span := c.tracer.Start(msgCtx, c.name)

		payload, key, err := c.reply(msgCtx, msg.Value)
		if err != nil {
			c.log.Error("check request not answered", "handler", c.name, "err", err)
		} else {
			out := kafka.Message{
				Key:     []byte(key),
				Value:   payload,
				Headers: tracing.InjectKafkaHeaders(msgCtx, nil),
			}
			if err := c.writer.WriteMessages(msgCtx, out); err != nil {
				c.log.Error("reply publish failed", "handler", c.name, "correlation_id", key, "err", err)
			}
		}
		span.End()
		_ = c.reader.CommitMessages(ctx, msg)
	}
}

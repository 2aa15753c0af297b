package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/orderflow/order-validation/internal/checker/application"
	"github.com/orderflow/order-validation/internal/order/domain"
)

type stubReader struct {
	ch chan kafka.Message
}

func (r *stubReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *stubReader) CommitMessages(context.Context, ...kafka.Message) error { return nil }
func (r *stubReader) Close() error                                          { return nil }

type stubWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *stubWriter) wait(t *testing.T) kafka.Message {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		w.mu.Lock()
		if len(w.msgs) > 0 {
			m := w.msgs[0]
			w.mu.Unlock()
			return m
		}
		w.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no reply published")
	return kafka.Message{}
}

type stubLevels map[int64]int

func (s stubLevels) Available(_ context.Context, productID int64) (int, error) {
	return s[productID], nil
}

type stubDirectory map[int64]bool

func (s stubDirectory) Blocked(_ context.Context, customerID int64) (bool, error) {
	return s[customerID], nil
}

func TestStockResponderAnswersWithSameCorrelationID(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, stubLevels{1: 3}, stubDirectory{})
	reader := &stubReader{ch: make(chan kafka.Message, 1)}
	writer := &stubWriter{}
	responder := NewStockResponder(log, reader, writer, nil, svc)
	go func() { _ = responder.Run(ctx) }()

	req := domain.StockCheckRequest{
		CorrelationID: "corr-9",
		Items:         []domain.StockCheckItem{{ProductID: 1, Quantity: 2}},
	}
	raw, _ := json.Marshal(req)
	reader.ch <- kafka.Message{Value: raw}

	reply := writer.wait(t)
	var resp domain.StockCheckResponse
	if err := json.Unmarshal(reply.Value, &resp); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.CorrelationID != "corr-9" {
		t.Errorf("correlation id = %q, want corr-9", resp.CorrelationID)
	}
	if !resp.IsStockAvailable {
		t.Errorf("reply = %+v, want available", resp)
	}
	if string(reply.Key) != "corr-9" {
		t.Errorf("message key = %q", reply.Key)
	}
}

func TestCustomerResponderFlagsBlockedCustomer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log := slog.New(slog.DiscardHandler)
	svc := application.NewService(log, stubLevels{}, stubDirectory{4: true})
	reader := &stubReader{ch: make(chan kafka.Message, 1)}
	writer := &stubWriter{}
	responder := NewCustomerResponder(log, reader, writer, nil, svc)
	go func() { _ = responder.Run(ctx) }()

	raw, _ := json.Marshal(domain.CustomerCheckRequest{CorrelationID: "corr-4", CustomerID: 4})
	reader.ch <- kafka.Message{Value: raw}

	reply := writer.wait(t)
	var resp domain.CustomerCheckResponse
	if err := json.Unmarshal(reply.Value, &resp); err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if resp.IsValid {
		t.Error("blocked customer answered valid")
	}
	if resp.Reason == "" {
		t.Error("rejection reason missing")
	}
}

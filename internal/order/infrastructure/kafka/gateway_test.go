package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/orderflow/order-validation/internal/order/application"
	"github.com/orderflow/order-validation/internal/order/domain"
)

// stubWriter captures published requests and can forward a scripted reply.
type stubWriter struct {
	mu      sync.Mutex
	msgs    []kafka.Message
	err     error
	onWrite func(kafka.Message)
}

func (w *stubWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.mu.Lock()
	w.msgs = append(w.msgs, msgs...)
	w.mu.Unlock()
	if w.onWrite != nil {
		for _, m := range msgs {
			w.onWrite(m)
		}
	}
	return nil
}

func (w *stubWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.msgs)
}

// stubReader feeds messages from a channel, behaving like a blocked Kafka
// reader when the channel is empty.
type stubReader struct {
	ch chan kafka.Message
}

func newStubReader() *stubReader {
	return &stubReader{ch: make(chan kafka.Message, 16)}
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

func (r *stubReader) deliver(t *testing.T, v any) {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	r.ch <- kafka.Message{Value: raw}
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestCustomerGatewayRoundTrip(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newStubReader()
	writer := &stubWriter{}
	// Echo every request back as a valid response.
	writer.onWrite = func(m kafka.Message) {
		var req domain.CustomerCheckRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		reader.deliver(t, domain.CustomerCheckResponse{CorrelationID: req.CorrelationID, IsValid: true})
	}

	g := NewCustomerGateway(discard(), writer, reader, time.Second)
	go func() { _ = g.Run(ctx) }()

	res, err := g.CheckCustomer(ctx, 42)
	if err != nil {
		t.Fatalf("CheckCustomer: %v", err)
	}
	if !res.OK {
		t.Errorf("result = %+v, want OK", res)
	}
	if writer.count() != 1 {
		t.Errorf("published %d requests, want 1", writer.count())
	}
}

// Two concurrent waits must each get their own answer even when the
// responses arrive in reverse order.
func TestStockGatewayCorrelatesConcurrentWaits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newStubReader()
	writer := &stubWriter{}

	// Collect both requests, then answer them in reverse order: the request
	// for quantity 1 is available, the other is not.
	var pending []domain.StockCheckRequest
	var mu sync.Mutex
	writer.onWrite = func(m kafka.Message) {
		var req domain.StockCheckRequest
		if err := json.Unmarshal(m.Value, &req); err != nil {
			t.Errorf("unmarshal request: %v", err)
			return
		}
		mu.Lock()
		pending = append(pending, req)
		ready := len(pending) == 2
		reqs := append([]domain.StockCheckRequest(nil), pending...)
		mu.Unlock()
		if !ready {
			return
		}
		for i := len(reqs) - 1; i >= 0; i-- {
			reader.deliver(t, domain.StockCheckResponse{
				CorrelationID:    reqs[i].CorrelationID,
				IsStockAvailable: reqs[i].Items[0].Quantity == 1,
			})
		}
	}

	g := NewStockGateway(discard(), writer, reader, 2*time.Second)
	go func() { _ = g.Run(ctx) }()

	var wg sync.WaitGroup
	results := make([]application.CheckResult, 2)
	errs := make([]error, 2)
	for i, qty := range []int{1, 2} {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			results[i], errs[i] = g.CheckStock(ctx, []domain.StockCheckItem{{ProductID: 1, Quantity: qty}})
		}(i, qty)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("CheckStock %d: %v", i, err)
		}
	}
	if !results[0].OK {
		t.Error("quantity-1 check should be available")
	}
	if results[1].OK {
		t.Error("quantity-2 check should be unavailable")
	}
}

func TestStockGatewayTimesOutWhenNoResponseArrives(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newStubReader()
	g := NewStockGateway(discard(), &stubWriter{}, reader, 50*time.Millisecond)
	go func() { _ = g.Run(ctx) }()

	_, err := g.CheckStock(ctx, []domain.StockCheckItem{{ProductID: 1, Quantity: 1}})
	var timeout *application.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if timeout.Check != application.CheckStock {
		t.Errorf("timed-out check = %q", timeout.Check)
	}
}

func TestCustomerGatewayTransportError(t *testing.T) {
	reader := newStubReader()
	writer := &stubWriter{err: errors.New("broker unreachable")}
	g := NewCustomerGateway(discard(), writer, reader, time.Second)

	_, err := g.CheckCustomer(context.Background(), 1)
	var transport *application.TransportError
	if !errors.As(err, &transport) {
		t.Fatalf("err = %v, want TransportError", err)
	}
}

// An unsolicited response must be dropped, not held for a future wait with
// a different correlation id.
func TestGatewayDropsUnmatchedResponses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := newStubReader()
	writer := &stubWriter{}
	g := NewCustomerGateway(discard(), writer, reader, 60*time.Millisecond)
	go func() { _ = g.Run(ctx) }()

	reader.deliver(t, domain.CustomerCheckResponse{CorrelationID: "nobody", IsValid: true})

	// The stale response above must not satisfy this wait.
	_, err := g.CheckCustomer(ctx, 7)
	var timeout *application.TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
}

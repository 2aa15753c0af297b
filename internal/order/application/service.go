package application

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/orderflow/order-validation/internal/order/domain"
)

type Service struct {
	log       *slog.Logger
	repo      OrderRepository
	customers CustomerChecker
	stock     StockChecker
	tracer    trace.Tracer
	now       func() time.Time
}

func NewService(log *slog.Logger, repo OrderRepository, customers CustomerChecker, stock StockChecker) *Service {
	return &Service{
		log:       log,
		repo:      repo,
		customers: customers,
		stock:     stock,
		tracer:    otel.Tracer("order-service"),
		now:       time.Now,
	}
}

// PlaceOrder validates a new order against the customer and stock services
// and persists it atomically. The transaction opened here is committed on
// exactly one path; every other return rolls it back via the deferred call.
func (s *Service) PlaceOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "PlaceOrder")
	defer span.End()

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	customer, err := s.customers.CheckCustomer(ctx, o.CustomerID)
	if err != nil {
		return domain.Order{}, err
	}
	if !customer.OK {
		s.log.Info("order rejected", "order_id", o.ID, "check", CheckCustomer, "reason", customer.Reason)
		return domain.Order{}, &RejectionError{Check: CheckCustomer, OrderID: o.ID, Reason: customer.Reason}
	}

	// The stock check is only ever published after the customer passed.
	stock, err := s.stock.CheckStock(ctx, o.StockItems())
	if err != nil {
		return domain.Order{}, err
	}
	if !stock.OK {
		s.log.Info("order rejected", "order_id", o.ID, "check", CheckStock, "reason", stock.Reason)
		return domain.Order{}, &RejectionError{Check: CheckStock, OrderID: o.ID, Reason: stock.Reason}
	}

	o.Validate(s.now())
	if err := tx.SaveOrder(ctx, &o); err != nil {
		return domain.Order{}, fmt.Errorf("save order: %w", err)
	}

	payload, err := json.Marshal(domain.OrderValidated{
		OrderID:    o.ID,
		CustomerID: o.CustomerID,
		Items:      o.StockItems(),
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("encode order validated event: %w", err)
	}
	if err := tx.AddEvent(ctx, "OrderValidated", strconv.FormatInt(o.ID, 10), payload, traceparent(ctx)); err != nil {
		return domain.Order{}, fmt.Errorf("enqueue order validated event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Order{}, fmt.Errorf("commit: %w", err)
	}

	persisted, err := s.repo.GetOrder(ctx, o.ID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("reload order %d: %w", o.ID, err)
	}
	s.log.Info("order validated", "order_id", o.ID)
	return persisted, nil
}

func (s *Service) CreateOrder(ctx context.Context, o *domain.Order) error {
	if o.Status == "" {
		o.Status = domain.StatusPending
	}
	return s.repo.CreateOrder(ctx, o)
}

func (s *Service) GetOrder(ctx context.Context, id int64) (domain.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

func (s *Service) ListOrders(ctx context.Context, withItems, withPayments bool) ([]domain.Order, error) {
	return s.repo.ListOrders(ctx, withItems, withPayments)
}

func (s *Service) UpdateOrder(ctx context.Context, o domain.Order) error {
	return s.repo.UpdateOrder(ctx, o)
}

func (s *Service) DeleteOrder(ctx context.Context, id int64) error {
	return s.repo.DeleteOrder(ctx, id)
}

func traceparent(ctx context.Context) string {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier["traceparent"]
}

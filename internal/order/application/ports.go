package application

import (
	"context"

	"github.com/orderflow/order-validation/internal/order/domain"
)

// CheckResult is the decoded outcome of one remote check.
type CheckResult struct {
	OK     bool
	Reason string
}

// CustomerChecker publishes a customer check request and blocks until the
// correlated response arrives or the configured timeout elapses.
type CustomerChecker interface {
	CheckCustomer(ctx context.Context, customerID int64) (CheckResult, error)
}

// StockChecker does the same for stock availability.
type StockChecker interface {
	CheckStock(ctx context.Context, items []domain.StockCheckItem) (CheckResult, error)
}

// OrderTx is a transaction handle owned by exactly one PlaceOrder call.
// Rollback after a successful Commit is a no-op, so callers may defer it.
type OrderTx interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	AddEvent(ctx context.Context, eventType string, aggregateID string, payload []byte, traceparent string) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type OrderRepository interface {
	Begin(ctx context.Context) (OrderTx, error)
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (domain.Order, error)
	ListOrders(ctx context.Context, withItems, withPayments bool) ([]domain.Order, error)
	UpdateOrder(ctx context.Context, o domain.Order) error
	DeleteOrder(ctx context.Context, id int64) error
}

package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/orderflow/order-validation/internal/order/domain"
)

// StockLevels reports how many units of a product are on hand.
type StockLevels interface {
	Available(ctx context.Context, productID int64) (int, error)
}

// CustomerDirectory reports whether a customer is blocked from ordering.
type CustomerDirectory interface {
	Blocked(ctx context.Context, customerID int64) (bool, error)
}

// Service answers check requests the way the remote customer and stock
// services would. A lookup failure yields an error and no reply, which the
// requester observes as a timeout.
type Service struct {
	log       *slog.Logger
	stock     StockLevels
	customers CustomerDirectory
}

func NewService(log *slog.Logger, stock StockLevels, customers CustomerDirectory) *Service {
	return &Service{log: log, stock: stock, customers: customers}
}

func (s *Service) AnswerCustomerCheck(ctx context.Context, req domain.CustomerCheckRequest) (domain.CustomerCheckResponse, error) {
	blocked, err := s.customers.Blocked(ctx, req.CustomerID)
	if err != nil {
		return domain.CustomerCheckResponse{}, fmt.Errorf("customer lookup: %w", err)
	}
	resp := domain.CustomerCheckResponse{
		CorrelationID: req.CorrelationID,
		IsValid:       !blocked,
	}
	if blocked {
		resp.Reason = "customer is blocked"
	}
	return resp, nil
}

func (s *Service) AnswerStockCheck(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResponse, error) {
	resp := domain.StockCheckResponse{
		CorrelationID:    req.CorrelationID,
		IsStockAvailable: true,
	}
	for _, item := range req.Items {
		onHand, err := s.stock.Available(ctx, item.ProductID)
		if err != nil {
			return domain.StockCheckResponse{}, fmt.Errorf("stock lookup product %d: %w", item.ProductID, err)
		}
		if onHand < item.Quantity {
			resp.IsStockAvailable = false
			resp.Reason = fmt.Sprintf("product %d: %d requested, %d available", item.ProductID, item.Quantity, onHand)
			break
		}
	}
	return resp, nil
}

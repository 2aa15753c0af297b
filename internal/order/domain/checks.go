package domain

// Wire types for the check round trips. Field names are part of the wire
// contract with the customer and stock services; both directions are UTF-8
// JSON.

type CustomerCheckRequest struct {
	CorrelationID string `json:"CorrelationId"`
	CustomerID    int64  `json:"CustomerId"`
}

type CustomerCheckResponse struct {
	CorrelationID string `json:"CorrelationId"`
	IsValid       bool   `json:"IsValid"`
	Reason        string `json:"Reason,omitempty"`
}

type StockCheckRequest struct {
	CorrelationID string           `json:"CorrelationId"`
	Items         []StockCheckItem `json:"Items"`
}

type StockCheckItem struct {
	ProductID int64 `json:"ProductId"`
	Quantity  int   `json:"Quantity"`
}

type StockCheckResponse struct {
	CorrelationID    string `json:"CorrelationId"`
	IsStockAvailable bool   `json:"IsStockAvailable"`
	Reason           string `json:"Reason,omitempty"`
}

// StockItems projects an order's line items into the wire shape, preserving
// their order.
func (o *Order) StockItems() []StockCheckItem {
	items := make([]StockCheckItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, StockCheckItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return items
}

// OrderValidated is emitted through the outbox once an order commits.
type OrderValidated struct {
	OrderID    int64            `json:"orderId"`
	CustomerID int64            `json:"customerId"`
	Items      []StockCheckItem `json:"items"`
}

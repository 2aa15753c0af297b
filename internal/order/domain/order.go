package domain

import "time"

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusValidated OrderStatus = "validated"
	StatusRejected  OrderStatus = "rejected"
)

// Order is the persisted aggregate. Items and payments live and die with it.
type Order struct {
	ID         int64       `json:"orderId"`
	CustomerID int64       `json:"customerId"`
	Date       time.Time   `json:"date"`
	Status     OrderStatus `json:"status"`
	Items      []OrderItem `json:"orderItems,omitempty"`
	Payments   []Payment   `json:"payments,omitempty"`
}

type OrderItem struct {
	ID        int64 `json:"orderItemId,omitempty"`
	OrderID   int64 `json:"orderId,omitempty"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type Payment struct {
	ID          int64     `json:"paymentId,omitempty"`
	OrderID     int64     `json:"orderId,omitempty"`
	AmountCents int64     `json:"amountCents"`
	Date        time.Time `json:"paymentDate"`
	Method      string    `json:"paymentMethod"`
	Status      string    `json:"status"`
}

// Validate marks the order as having passed both checks and stamps the
// validation time.
func (o *Order) Validate(now time.Time) {
	o.Status = StatusValidated
	o.Date = now.UTC()
}

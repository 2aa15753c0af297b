package application

import (
	"errors"
	"fmt"
)

// Check names which remote validation produced an outcome.
type Check string

const (
	CheckCustomer Check = "customer"
	CheckStock    Check = "stock"
)

// ErrNotFound is returned by repository reads for a missing order.
var ErrNotFound = errors.New("order not found")

// RejectionError means a check answered and said no. The order write was
// rolled back.
type RejectionError struct {
	Check   Check
	OrderID int64
	Reason  string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("order %d rejected by %s check: %s", e.OrderID, e.Check, e.Reason)
}

// TimeoutError means a check never answered within the deadline; the outcome
// is unknown, which callers must distinguish from a rejection.
type TimeoutError struct {
	Check Check
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s check response timed out", e.Check)
}

// TransportError wraps a failure to publish a check request.
type TransportError struct {
	Check Check
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s check publish failed: %v", e.Check, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

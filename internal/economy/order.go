package economy

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidOrder reports a malformed order or product rejected at the boundary.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrOrderTransition reports an attempt to move an order backwards or out
	// of a terminal status.
	ErrOrderTransition = errors.New("invalid order transition")
)

// OrderStatus tracks an order through its lifecycle. Transitions only move
// forward: pending → in_transit → fulfilled, or pending → cancelled.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusInTransit OrderStatus = "in_transit"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
)

// Order is a request for quantity units of a product. Orders are never
// deleted, only transitioned, so metrics can reference history.
type Order struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Requester string      `json:"requester"`
	Created   uint64      `json:"created"` // Tick the order was placed
	Status    OrderStatus `json:"status"`

	// DeliveryLocation is where the fulfilling side should ship to.
	DeliveryLocation string `json:"delivery_location,omitempty"`
}

// NewOrder creates a pending order, validating its fields.
func NewOrder(id, productID string, quantity int, requester, deliveryLocation string, tick uint64) (*Order, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty order id", ErrInvalidOrder)
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: order %q has no product", ErrInvalidOrder, id)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: order %q quantity must be positive, got %d", ErrInvalidOrder, id, quantity)
	}
	if requester == "" {
		return nil, fmt.Errorf("%w: order %q has no requester", ErrInvalidOrder, id)
	}
	return &Order{
		ID:               id,
		ProductID:        productID,
		Quantity:         quantity,
		Requester:        requester,
		Created:          tick,
		Status:           StatusPending,
		DeliveryLocation: deliveryLocation,
	}, nil
}

// Transition moves the order to a new status, enforcing the forward-only
// state machine. Fulfilled and cancelled are terminal.
func (o *Order) Transition(next OrderStatus) error {
	allowed := map[OrderStatus][]OrderStatus{
		StatusPending:   {StatusInTransit, StatusCancelled},
		StatusInTransit: {StatusFulfilled},
	}
	for _, s := range allowed[o.Status] {
		if s == next {
			o.Status = next
			return nil
		}
	}
	return fmt.Errorf("%w: order %s cannot go %s → %s", ErrOrderTransition, o.ID, o.Status, next)
}

// Terminal reports whether the order has reached a final status.
func (o *Order) Terminal() bool {
	return o.Status == StatusFulfilled || o.Status == StatusCancelled
}

// String returns a short description of the order.
func (o *Order) String() string {
	return fmt.Sprintf("Order %s: %dx %s for %s (%s)", o.ID, o.Quantity, o.ProductID, o.Requester, o.Status)
}

// Package bus provides the publish-subscribe transport agents coordinate
// through. Messages published during tick T are delivered at the start of
// tick T+1; there is no same-tick delivery.
package bus

import "fmt"

// Type identifies the kind of message. The set is closed; payloads are
// dispatched by exhaustive switch, not field inspection.
type Type string

const (
	TypeOrderRequest       Type = "ORDER_REQUEST"
	TypeOrderRejected      Type = "ORDER_REJECTED"
	TypeDispatchTruck      Type = "DISPATCH_TRUCK"
	TypeDeliveryComplete   Type = "DELIVERY_COMPLETE"
	TypeDeliveryNotice     Type = "DELIVERY_NOTIFICATION"
	TypeFactoryOrder       Type = "FACTORY_ORDER"
	TypeProductionComplete Type = "PRODUCTION_COMPLETE"
	TypeTruckAvailable     Type = "TRUCK_AVAILABLE"
	TypeDemandUpdate       Type = "DEMAND_UPDATE"
)

// Broadcast is the wildcard recipient: the message is fanned out to every
// registered subscriber except the sender.
const Broadcast = "*"

// Payload is the typed body of a message. One implementation per Type.
type Payload interface {
	MessageType() Type
}

// OrderRequest asks a warehouse to fulfill a store order.
type OrderRequest struct {
	OrderID          string
	ProductID        string
	Quantity         int
	Requester        string
	DeliveryLocation string
}

// OrderRejected tells the requester an order was cancelled.
type OrderRejected struct {
	OrderID string
	Reason  string
}

// DispatchTruck commands an idle truck to carry cargo from origin to destination.
type DispatchTruck struct {
	OrderID     string
	ProductID   string
	Quantity    int
	Origin      string
	Destination string
	Recipient   string // Agent to notify on delivery
}

// DeliveryComplete reports arrival back to the dispatching warehouse.
type DeliveryComplete struct {
	OrderID   string
	ProductID string
	Quantity  int
	Location  string
}

// DeliveryNotice restocks the requesting store.
type DeliveryNotice struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// FactoryOrder asks a factory to produce goods for a warehouse.
type FactoryOrder struct {
	OrderID   string
	ProductID string
	Quantity  int
	Requester string
}

// ProductionComplete reports finished production to the ordering warehouse.
type ProductionComplete struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// TruckAvailable announces a truck has returned to idle.
type TruckAvailable struct {
	TruckID string
}

// DemandUpdate replaces a store's demand rate.
type DemandUpdate struct {
	Rate   float64
	Source string
}

func (OrderRequest) MessageType() Type       { return TypeOrderRequest }
func (OrderRejected) MessageType() Type      { return TypeOrderRejected }
func (DispatchTruck) MessageType() Type      { return TypeDispatchTruck }
func (DeliveryComplete) MessageType() Type   { return TypeDeliveryComplete }
func (DeliveryNotice) MessageType() Type     { return TypeDeliveryNotice }
func (FactoryOrder) MessageType() Type       { return TypeFactoryOrder }
func (ProductionComplete) MessageType() Type { return TypeProductionComplete }
func (TruckAvailable) MessageType() Type     { return TypeTruckAvailable }
func (DemandUpdate) MessageType() Type       { return TypeDemandUpdate }

// Message is an immutable envelope. Identity is deterministic (sender, tick,
// per-sender sequence) so a run is reproducible from its seed and handlers
// can dedupe redelivery.
type Message struct {
	ID        string
	Sender    string
	Recipient string
	Type      Type
	Tick      uint64 // Tick at enqueue
	Payload   Payload
}

// String returns a short description of the message.
func (m Message) String() string {
	return fmt.Sprintf("%s %s→%s (%s)", m.Type, m.Sender, m.Recipient, m.ID)
}

package agents

// Event is a business-meaningful occurrence produced by an agent step,
// distinct from inter-agent messages. The performance tracker and activity
// feed consume these; agents never do.
type Event interface {
	event()
}

// Sale records units sold to customers at a store.
type Sale struct {
	AgentID   string
	ProductID string
	Quantity  int
	UnitPrice float64
}

// Stockout records demand a store could not serve. Quantity exactly matches
// the shortfall that was clamped away from inventory.
type Stockout struct {
	AgentID   string
	ProductID string
	Quantity  int
	UnitPrice float64
}

// StorageCharge records the per-tick cost of holding inventory.
type StorageCharge struct {
	AgentID     string
	ProductID   string
	Quantity    int
	CostPerUnit float64
}

// OrderPlaced records a replenishment order sent upstream.
type OrderPlaced struct {
	AgentID    string
	OrderID    string
	ProductID  string
	Quantity   int
	SupplierID string
}

// OrderCancelled records an order that reached the cancelled terminal state.
type OrderCancelled struct {
	AgentID string
	OrderID string
	Reason  string
}

// OrderFulfilled records an order that reached the fulfilled terminal state.
type OrderFulfilled struct {
	AgentID string
	OrderID string
}

// TruckDispatched records a warehouse binding an idle truck to an order.
type TruckDispatched struct {
	WarehouseID string
	TruckID     string
	OrderID     string
	ProductID   string
	Quantity    int
	Destination string
}

// DeliveryCompleted records a truck arriving and unloading its cargo.
type DeliveryCompleted struct {
	TruckID   string
	OrderID   string
	ProductID string
	Quantity  int
	Location  string
}

// ProductionStarted records a factory admitting an order into production.
type ProductionStarted struct {
	FactoryID string
	OrderID   string
	ProductID string
	Quantity  int
}

// ProductionCompleted records finished goods leaving a factory line.
type ProductionCompleted struct {
	FactoryID string
	OrderID   string
	ProductID string
	Quantity  int
}

// DemandShifted records a market event perturbing store demand.
type DemandShifted struct {
	MarketID   string
	Kind       string
	Stores     []string
	Multiplier float64
}

// AgentFault records a step failure that deactivated an agent. Emitted by
// the simulation manager, not by agents themselves.
type AgentFault struct {
	AgentID string
	Reason  string
}

// BusOverflow records messages dropped during a bus flush.
type BusOverflow struct {
	Recipient string
	Dropped   int
	Reason    string
}

func (Sale) event()                {}
func (Stockout) event()            {}
func (StorageCharge) event()       {}
func (OrderPlaced) event()         {}
func (OrderCancelled) event()      {}
func (OrderFulfilled) event()      {}
func (TruckDispatched) event()     {}
func (DeliveryCompleted) event()   {}
func (ProductionStarted) event()   {}
func (ProductionCompleted) event() {}
func (DemandShifted) event()       {}
func (AgentFault) event()          {}
func (BusOverflow) event()         {}

package agents

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/economy"
)

// WarehouseConfig holds the initial configuration of a warehouse agent.
type WarehouseConfig struct {
	ID               string
	LocationID       string
	FactoryID        string
	Inventory        economy.Inventory
	ReorderThreshold int
	ReorderQuantity  int
	TruckIDs         []string
	// OrderTTL is how many ticks a held order may wait before cancellation.
	// Zero disables expiry.
	OrderTTL uint64
}

// Warehouse owns the order lifecycle: it accepts store orders, dispatches
// trucks when stock and a vehicle are both available, holds orders FIFO when
// they are not, and replenishes itself from its assigned factory.
type Warehouse struct {
	base
	cfg     WarehouseConfig
	catalog map[string]economy.Product

	inventory economy.Inventory

	orders map[string]*economy.Order
	// held keeps unfulfillable order ids in arrival order for fair retry.
	held []string

	idleTrucks []string
	truckHome  map[string]bool // All trucks this warehouse dispatches

	// restockPending marks products with a factory order in flight.
	restockPending map[string]string
	orderSeq       uint64
}

// NewWarehouse creates a warehouse agent subscribed to the bus.
func NewWarehouse(cfg WarehouseConfig, catalog map[string]economy.Product, b *bus.Bus) *Warehouse {
	w := &Warehouse{
		base:    newBase(cfg.ID, KindWarehouse, cfg.LocationID, b),
		cfg:     cfg,
		catalog: catalog,
	}
	w.Reset()
	slog.Info("warehouse initialized",
		"id", cfg.ID, "location", cfg.LocationID, "factory", cfg.FactoryID,
		"trucks", len(cfg.TruckIDs), "order_ttl", cfg.OrderTTL)
	return w
}

// Reset restores the configured initial state. All trucks return to the
// idle pool; orders and held queue are discarded.
func (w *Warehouse) Reset() {
	w.resetBase()
	w.inventory = w.cfg.Inventory.Clone()
	w.orders = make(map[string]*economy.Order)
	w.held = nil
	w.idleTrucks = append([]string(nil), w.cfg.TruckIDs...)
	w.truckHome = make(map[string]bool, len(w.cfg.TruckIDs))
	for _, id := range w.cfg.TruckIDs {
		w.truckHome[id] = true
	}
	w.restockPending = make(map[string]string)
	w.orderSeq = 0
}

// Handle processes one inbound message. Handlers only mutate state; all
// outbound traffic happens in Step.
func (w *Warehouse) Handle(msg bus.Message) error {
	if w.duplicate(msg) {
		return nil
	}
	switch p := msg.Payload.(type) {
	case bus.OrderRequest:
		return w.acceptOrder(p, msg.Tick)
	case bus.DeliveryComplete:
		w.completeOrder(p)
	case bus.ProductionComplete:
		w.receiveProduction(p)
	case bus.TruckAvailable:
		w.truckReturned(p.TruckID)
	default:
		w.unexpected(msg)
	}
	return nil
}

func (w *Warehouse) acceptOrder(p bus.OrderRequest, tick uint64) error {
	if _, exists := w.orders[p.OrderID]; exists {
		return nil
	}
	order, err := economy.NewOrder(p.OrderID, p.ProductID, p.Quantity, p.Requester, p.DeliveryLocation, tick)
	if err != nil {
		slog.Warn("order request rejected", "warehouse", w.id, "order", p.OrderID, "err", err)
		return fmt.Errorf("accept order %s: %w", p.OrderID, err)
	}
	w.orders[order.ID] = order
	w.held = append(w.held, order.ID)
	slog.Info("order accepted", "warehouse", w.id, "order", order.ID,
		"product", order.ProductID, "quantity", order.Quantity, "from", order.Requester)
	return nil
}

func (w *Warehouse) completeOrder(p bus.DeliveryComplete) {
	order, ok := w.orders[p.OrderID]
	if !ok || order.Terminal() {
		return
	}
	if err := order.Transition(economy.StatusFulfilled); err != nil {
		slog.Warn("order completion ignored", "warehouse", w.id, "order", p.OrderID, "err", err)
		return
	}
	w.emit(OrderFulfilled{AgentID: w.id, OrderID: order.ID})
	slog.Info("order fulfilled", "warehouse", w.id, "order", order.ID, "location", p.Location)
}

func (w *Warehouse) receiveProduction(p bus.ProductionComplete) {
	if p.Quantity <= 0 {
		return
	}
	w.inventory.Add(p.ProductID, p.Quantity)
	if w.restockPending[p.ProductID] == p.OrderID {
		delete(w.restockPending, p.ProductID)
	}
	slog.Info("production received", "warehouse", w.id, "product", p.ProductID, "quantity", p.Quantity)
}

func (w *Warehouse) truckReturned(truckID string) {
	if !w.truckHome[truckID] {
		return
	}
	for _, id := range w.idleTrucks {
		if id == truckID {
			return
		}
	}
	w.idleTrucks = append(w.idleTrucks, truckID)
	sort.Strings(w.idleTrucks)
	slog.Debug("truck back in pool", "warehouse", w.id, "truck", truckID)
}

// Step retries held orders oldest-first, expires the stale ones, restocks
// from the factory when inventory runs low, and charges storage.
func (w *Warehouse) Step(tick uint64) []Event {
	w.dispatchHeld(tick)
	w.expireHeld(tick)
	w.checkRestock(tick)
	w.chargeStorage()
	return w.drain()
}

func (w *Warehouse) dispatchHeld(tick uint64) {
	var still []string
	for _, orderID := range w.held {
		order := w.orders[orderID]
		if order == nil || order.Terminal() {
			continue
		}
		if !w.dispatch(order, tick) {
			still = append(still, orderID)
		}
	}
	w.held = still
}

// dispatch binds an idle truck to the order if stock covers it. Returns
// false when the order must stay held.
func (w *Warehouse) dispatch(order *economy.Order, tick uint64) bool {
	if w.inventory.Get(order.ProductID) < order.Quantity {
		return false
	}
	if len(w.idleTrucks) == 0 {
		return false
	}
	truckID := w.idleTrucks[0]
	w.idleTrucks = w.idleTrucks[1:]

	w.inventory.Remove(order.ProductID, order.Quantity)
	if err := order.Transition(economy.StatusInTransit); err != nil {
		// Should not happen for a held pending order; put stock back.
		w.inventory.Add(order.ProductID, order.Quantity)
		w.idleTrucks = append([]string{truckID}, w.idleTrucks...)
		slog.Error("dispatch transition failed", "warehouse", w.id, "order", order.ID, "err", err)
		return true
	}

	w.send(truckID, tick, bus.DispatchTruck{
		OrderID:     order.ID,
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Origin:      w.locationID,
		Destination: order.DeliveryLocation,
		Recipient:   order.Requester,
	})
	w.emit(TruckDispatched{
		WarehouseID: w.id,
		TruckID:     truckID,
		OrderID:     order.ID,
		ProductID:   order.ProductID,
		Quantity:    order.Quantity,
		Destination: order.DeliveryLocation,
	})
	slog.Info("truck dispatched", "warehouse", w.id, "truck", truckID,
		"order", order.ID, "destination", order.DeliveryLocation)
	return true
}

func (w *Warehouse) expireHeld(tick uint64) {
	if w.cfg.OrderTTL == 0 {
		return
	}
	var still []string
	for _, orderID := range w.held {
		order := w.orders[orderID]
		if order == nil || order.Terminal() {
			continue
		}
		if tick-order.Created < w.cfg.OrderTTL {
			still = append(still, orderID)
			continue
		}
		if err := order.Transition(economy.StatusCancelled); err != nil {
			slog.Error("order expiry failed", "warehouse", w.id, "order", orderID, "err", err)
			continue
		}
		w.send(order.Requester, tick, bus.OrderRejected{OrderID: order.ID, Reason: "order expired"})
		w.emit(OrderCancelled{AgentID: w.id, OrderID: order.ID, Reason: "order expired"})
		slog.Warn("order expired", "warehouse", w.id, "order", order.ID,
			"waited", tick-order.Created)
	}
	w.held = still
}

func (w *Warehouse) checkRestock(tick uint64) {
	for _, productID := range w.productIDs() {
		if w.inventory.Get(productID) > w.cfg.ReorderThreshold {
			continue
		}
		if _, pending := w.restockPending[productID]; pending {
			continue
		}
		w.orderSeq++
		orderID := fmt.Sprintf("%s-restock-%d", w.id, w.orderSeq)
		w.restockPending[productID] = orderID

		w.send(w.cfg.FactoryID, tick, bus.FactoryOrder{
			OrderID:   orderID,
			ProductID: productID,
			Quantity:  w.cfg.ReorderQuantity,
			Requester: w.id,
		})
		w.emit(OrderPlaced{
			AgentID:    w.id,
			OrderID:    orderID,
			ProductID:  productID,
			Quantity:   w.cfg.ReorderQuantity,
			SupplierID: w.cfg.FactoryID,
		})
		slog.Info("restock ordered", "warehouse", w.id, "order", orderID,
			"product", productID, "quantity", w.cfg.ReorderQuantity, "factory", w.cfg.FactoryID)
	}
}

func (w *Warehouse) chargeStorage() {
	for _, productID := range w.productIDs() {
		qty := w.inventory.Get(productID)
		if qty > 0 {
			w.emit(StorageCharge{
				AgentID:     w.id,
				ProductID:   productID,
				Quantity:    qty,
				CostPerUnit: w.catalog[productID].StorageCost,
			})
		}
	}
}

func (w *Warehouse) productIDs() []string {
	ids := make([]string, 0, len(w.catalog))
	for id := range w.catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Order returns the warehouse's record of an order, or nil.
func (w *Warehouse) Order(orderID string) *economy.Order {
	return w.orders[orderID]
}

// InventoryLevel returns on-hand stock for a product.
func (w *Warehouse) InventoryLevel(productID string) int {
	return w.inventory.Get(productID)
}

// IdleTrucks returns the number of trucks available for dispatch.
func (w *Warehouse) IdleTrucks() int {
	return len(w.idleTrucks)
}

// HeldOrders returns the number of orders waiting for stock or a truck.
func (w *Warehouse) HeldOrders() int {
	return len(w.held)
}

// StateSnapshot returns the warehouse state subset for the snapshot boundary.
func (w *Warehouse) StateSnapshot() map[string]any {
	byStatus := map[string]int{}
	for _, o := range w.orders {
		byStatus[string(o.Status)]++
	}
	return map[string]any{
		"inventory":    w.inventory.Clone(),
		"held_orders":  len(w.held),
		"idle_trucks":  len(w.idleTrucks),
		"total_trucks": len(w.cfg.TruckIDs),
		"orders":       byStatus,
	}
}

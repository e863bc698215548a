package agents

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/economy"
)

// StoreConfig holds the initial configuration of a store agent.
type StoreConfig struct {
	ID               string
	LocationID       string
	WarehouseID      string
	Inventory        economy.Inventory
	ReorderThreshold int
	ReorderQuantity  int
	DemandRate       float64
}

// Store serves customer demand from local inventory and reorders from its
// assigned warehouse when stock runs low.
type Store struct {
	base
	cfg     StoreConfig
	catalog map[string]economy.Product

	inventory  economy.Inventory
	demandRate float64

	// Fractional demand carries across ticks so non-integer rates still
	// produce the right long-run unit count.
	demandCarry map[string]float64

	// outstanding maps product id → order id while a reorder is in flight.
	outstanding map[string]string
	orderSeq    uint64

	salesRevenue float64
	lostUnits    int
}

// NewStore creates a store agent subscribed to the bus.
func NewStore(cfg StoreConfig, catalog map[string]economy.Product, b *bus.Bus) *Store {
	s := &Store{
		base:    newBase(cfg.ID, KindStore, cfg.LocationID, b),
		cfg:     cfg,
		catalog: catalog,
	}
	s.Reset()
	slog.Info("store initialized",
		"id", cfg.ID, "location", cfg.LocationID, "warehouse", cfg.WarehouseID,
		"threshold", cfg.ReorderThreshold, "reorder_qty", cfg.ReorderQuantity)
	return s
}

// Reset restores the configured initial state.
func (s *Store) Reset() {
	s.resetBase()
	s.inventory = s.cfg.Inventory.Clone()
	s.demandRate = s.cfg.DemandRate
	s.demandCarry = make(map[string]float64)
	s.outstanding = make(map[string]string)
	s.orderSeq = 0
	s.salesRevenue = 0
	s.lostUnits = 0
}

// Handle processes one inbound message.
func (s *Store) Handle(msg bus.Message) error {
	if s.duplicate(msg) {
		return nil
	}
	switch p := msg.Payload.(type) {
	case bus.DeliveryNotice:
		s.handleDelivery(p)
	case bus.DemandUpdate:
		s.demandRate = math.Max(0, p.Rate)
		slog.Debug("demand rate updated", "store", s.id, "rate", s.demandRate, "source", p.Source)
	case bus.OrderRejected:
		s.handleRejection(p)
	default:
		s.unexpected(msg)
	}
	return nil
}

func (s *Store) handleDelivery(p bus.DeliveryNotice) {
	if p.Quantity <= 0 {
		return
	}
	s.inventory.Add(p.ProductID, p.Quantity)
	if s.outstanding[p.ProductID] == p.OrderID {
		delete(s.outstanding, p.ProductID)
	}
	slog.Info("store restocked", "store", s.id, "product", p.ProductID, "quantity", p.Quantity, "order", p.OrderID)
}

func (s *Store) handleRejection(p bus.OrderRejected) {
	for productID, orderID := range s.outstanding {
		if orderID == p.OrderID {
			delete(s.outstanding, productID)
			slog.Warn("store order rejected", "store", s.id, "order", p.OrderID, "reason", p.Reason)
			return
		}
	}
}

// AddDemand injects extra pending demand for a product, on top of the
// per-tick demand rate. Used by market surges and scenario setup.
func (s *Store) AddDemand(productID string, units int) {
	if units > 0 {
		s.demandCarry[productID] += float64(units)
	}
}

// Step serves accumulated demand, charges storage, and reorders if needed.
func (s *Store) Step(tick uint64) []Event {
	s.serveDemand()
	s.chargeStorage()
	s.checkReorder(tick)
	return s.drain()
}

func (s *Store) serveDemand() {
	for _, productID := range s.productIDs() {
		s.demandCarry[productID] += s.demandRate
		demand := int(s.demandCarry[productID])
		if demand <= 0 {
			continue
		}
		s.demandCarry[productID] -= float64(demand)

		sold, short := s.inventory.Remove(productID, demand)
		price := s.catalog[productID].UnitPrice
		if sold > 0 {
			s.salesRevenue += float64(sold) * price
			s.emit(Sale{AgentID: s.id, ProductID: productID, Quantity: sold, UnitPrice: price})
		}
		if short > 0 {
			s.lostUnits += short
			s.emit(Stockout{AgentID: s.id, ProductID: productID, Quantity: short, UnitPrice: price})
			slog.Warn("stockout", "store", s.id, "product", productID, "unmet", short)
		}
	}
}

func (s *Store) chargeStorage() {
	for _, productID := range s.productIDs() {
		qty := s.inventory.Get(productID)
		if qty > 0 {
			s.emit(StorageCharge{
				AgentID:     s.id,
				ProductID:   productID,
				Quantity:    qty,
				CostPerUnit: s.catalog[productID].StorageCost,
			})
		}
	}
}

func (s *Store) checkReorder(tick uint64) {
	for _, productID := range s.productIDs() {
		if s.inventory.Get(productID) > s.cfg.ReorderThreshold {
			continue
		}
		if _, pending := s.outstanding[productID]; pending {
			continue
		}
		s.placeOrder(productID, tick)
	}
}

func (s *Store) placeOrder(productID string, tick uint64) {
	s.orderSeq++
	orderID := fmt.Sprintf("%s-order-%d", s.id, s.orderSeq)
	s.outstanding[productID] = orderID

	s.send(s.cfg.WarehouseID, tick, bus.OrderRequest{
		OrderID:          orderID,
		ProductID:        productID,
		Quantity:         s.cfg.ReorderQuantity,
		Requester:        s.id,
		DeliveryLocation: s.locationID,
	})
	s.emit(OrderPlaced{
		AgentID:    s.id,
		OrderID:    orderID,
		ProductID:  productID,
		Quantity:   s.cfg.ReorderQuantity,
		SupplierID: s.cfg.WarehouseID,
	})
	slog.Info("store placed order",
		"store", s.id, "order", orderID, "product", productID,
		"quantity", s.cfg.ReorderQuantity, "warehouse", s.cfg.WarehouseID)
}

// productIDs returns the catalog ids in stable order.
func (s *Store) productIDs() []string {
	ids := make([]string, 0, len(s.catalog))
	for id := range s.catalog {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InventoryLevel returns on-hand stock for a product.
func (s *Store) InventoryLevel(productID string) int {
	return s.inventory.Get(productID)
}

// DemandRate returns the current demand rate.
func (s *Store) DemandRate() float64 {
	return s.demandRate
}

// StateSnapshot returns the store state subset for the snapshot boundary.
func (s *Store) StateSnapshot() map[string]any {
	return map[string]any{
		"inventory":      s.inventory.Clone(),
		"demand_rate":    s.demandRate,
		"pending_orders": len(s.outstanding),
		"sales_revenue":  s.salesRevenue,
		"lost_sales":     s.lostUnits,
	}
}

package agents

import (
	"fmt"
	"log/slog"

	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/city"
)

// TruckState is the truck's position in its delivery cycle.
type TruckState string

const (
	TruckIdle      TruckState = "idle"
	TruckLoading   TruckState = "loading"
	TruckInTransit TruckState = "in_transit"
)

// TruckConfig holds the initial configuration of a truck agent.
type TruckConfig struct {
	ID          string
	WarehouseID string
	HomeID      string // Home location, where the truck idles
	// Speed is distance covered per tick on the city map.
	Speed float64
	// Capacity is the largest cargo quantity a single dispatch may carry.
	Capacity int
}

// cargo is the load bound to the truck for the current trip.
type cargo struct {
	orderID     string
	productID   string
	quantity    int
	origin      string
	destination string
	recipient   string
}

// Truck carries one order at a time from its warehouse to a delivery
// location. Travel time is distance divided by speed, rounded up to whole
// ticks; the dispatch tick itself is spent loading.
type Truck struct {
	base
	cfg TruckConfig
	cm  *city.Map

	state    TruckState
	load     cargo
	distance float64
	progress float64 // Fraction of the route covered, monotone within a trip

	deliveries int
}

// NewTruck creates a truck agent subscribed to the bus.
func NewTruck(cfg TruckConfig, cm *city.Map, b *bus.Bus) *Truck {
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}
	t := &Truck{
		base: newBase(cfg.ID, KindTruck, cfg.HomeID, b),
		cfg:  cfg,
		cm:   cm,
	}
	t.Reset()
	slog.Info("truck initialized", "id", cfg.ID, "warehouse", cfg.WarehouseID,
		"home", cfg.HomeID, "speed", cfg.Speed, "capacity", cfg.Capacity)
	return t
}

// Reset restores the truck to idle at its home location.
func (t *Truck) Reset() {
	t.resetBase()
	t.state = TruckIdle
	t.load = cargo{}
	t.distance = 0
	t.progress = 0
	t.deliveries = 0
}

// Handle processes one inbound message. A dispatch while loaded is refused
// with ErrTruckBusy; the warehouse's idle pool makes that a logic error, not
// a routine occurrence.
func (t *Truck) Handle(msg bus.Message) error {
	if t.duplicate(msg) {
		return nil
	}
	switch p := msg.Payload.(type) {
	case bus.DispatchTruck:
		return t.acceptDispatch(p)
	default:
		t.unexpected(msg)
	}
	return nil
}

func (t *Truck) acceptDispatch(p bus.DispatchTruck) error {
	if t.state != TruckIdle {
		slog.Error("dispatch refused, truck busy", "truck", t.id, "order", p.OrderID)
		return fmt.Errorf("dispatch %s to %s: %w", p.OrderID, t.id, ErrTruckBusy)
	}
	if t.cfg.Capacity > 0 && p.Quantity > t.cfg.Capacity {
		slog.Error("dispatch refused, over capacity", "truck", t.id,
			"order", p.OrderID, "quantity", p.Quantity, "capacity", t.cfg.Capacity)
		return fmt.Errorf("dispatch %s to %s: %w", p.OrderID, t.id, ErrOverCapacity)
	}
	dist, err := t.cm.Distance(p.Origin, p.Destination)
	if err != nil {
		slog.Error("dispatch refused, bad route", "truck", t.id, "order", p.OrderID, "err", err)
		return fmt.Errorf("dispatch %s to %s: %w", p.OrderID, t.id, err)
	}
	t.state = TruckLoading
	t.load = cargo{
		orderID:     p.OrderID,
		productID:   p.ProductID,
		quantity:    p.Quantity,
		origin:      p.Origin,
		destination: p.Destination,
		recipient:   p.Recipient,
	}
	t.distance = dist
	t.progress = 0
	slog.Info("truck loading", "truck", t.id, "order", p.OrderID,
		"destination", p.Destination, "distance", dist)
	return nil
}

// Step advances the trip by one tick. The tick a dispatch arrives is spent
// loading; each following tick covers speed/distance of the route, and on
// the tick progress reaches 1.0 the truck unloads and goes idle in place.
func (t *Truck) Step(tick uint64) []Event {
	switch t.state {
	case TruckIdle:
		// Nothing to do.
	case TruckLoading:
		t.state = TruckInTransit
		t.progress = 0
		slog.Debug("truck departed", "truck", t.id, "order", t.load.orderID)
	case TruckInTransit:
		if t.distance <= 0 {
			t.progress = 1
		} else {
			t.progress += t.cfg.Speed / t.distance
		}
		if t.progress >= 1 {
			t.progress = 1
			t.deliver(tick)
		}
	}
	return t.drain()
}

func (t *Truck) deliver(tick uint64) {
	t.send(t.cfg.WarehouseID, tick, bus.DeliveryComplete{
		OrderID:   t.load.orderID,
		ProductID: t.load.productID,
		Quantity:  t.load.quantity,
		Location:  t.load.destination,
	})
	t.send(t.load.recipient, tick, bus.DeliveryNotice{
		OrderID:   t.load.orderID,
		ProductID: t.load.productID,
		Quantity:  t.load.quantity,
	})
	t.send(t.cfg.WarehouseID, tick, bus.TruckAvailable{TruckID: t.id})
	t.emit(DeliveryCompleted{
		TruckID:   t.id,
		OrderID:   t.load.orderID,
		ProductID: t.load.productID,
		Quantity:  t.load.quantity,
		Location:  t.load.destination,
	})
	slog.Info("delivery complete", "truck", t.id, "order", t.load.orderID,
		"location", t.load.destination)

	t.deliveries++
	t.locationID = t.load.destination
	t.state = TruckIdle
	t.load = cargo{}
	t.distance = 0
	t.progress = 0
}

// State returns the current trip state.
func (t *Truck) State() TruckState {
	return t.state
}

// Progress returns the fraction of the current route covered.
func (t *Truck) Progress() float64 {
	return t.progress
}

// Position returns the truck's map coordinates, interpolated along the
// route while in transit.
func (t *Truck) Position() (x, y float64) {
	if t.state != TruckInTransit {
		loc, ok := t.cm.Get(t.locationID)
		if !ok {
			return 0, 0
		}
		return loc.X, loc.Y
	}
	from, okFrom := t.cm.Get(t.load.origin)
	to, okTo := t.cm.Get(t.load.destination)
	if !okFrom || !okTo {
		return 0, 0
	}
	return from.X + (to.X-from.X)*t.progress, from.Y + (to.Y-from.Y)*t.progress
}

// StateSnapshot returns the truck state subset for the snapshot boundary.
func (t *Truck) StateSnapshot() map[string]any {
	x, y := t.Position()
	snap := map[string]any{
		"state":      string(t.state),
		"progress":   t.progress,
		"x":          x,
		"y":          y,
		"deliveries": t.deliveries,
	}
	if t.state != TruckIdle {
		snap["order"] = t.load.orderID
		snap["destination"] = t.load.destination
	}
	return snap
}

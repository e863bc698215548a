package agents

import (
	"log/slog"

	"github.com/talgya/supply-sim/internal/bus"
)

// FactoryConfig holds the initial configuration of a factory agent.
type FactoryConfig struct {
	ID         string
	LocationID string
	// Capacity is the number of production lines; at most this many orders
	// are in production at once.
	Capacity int
	// ProductionTime is how many ticks a job spends on a line.
	ProductionTime uint64
}

// productionJob is one order moving through a line.
type productionJob struct {
	orderID   string
	productID string
	quantity  int
	requester string
	remaining uint64
}

// Factory produces goods to order. Orders beyond line capacity queue and are
// admitted in arrival order as lines free up.
type Factory struct {
	base
	cfg FactoryConfig

	active []*productionJob
	queue  []*productionJob

	produced int // Lifetime units, for the snapshot
}

// NewFactory creates a factory agent subscribed to the bus.
func NewFactory(cfg FactoryConfig, b *bus.Bus) *Factory {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	if cfg.ProductionTime == 0 {
		cfg.ProductionTime = 1
	}
	f := &Factory{
		base: newBase(cfg.ID, KindFactory, cfg.LocationID, b),
		cfg:  cfg,
	}
	f.Reset()
	slog.Info("factory initialized", "id", cfg.ID, "location", cfg.LocationID,
		"capacity", cfg.Capacity, "production_time", cfg.ProductionTime)
	return f
}

// Reset restores the configured initial state, discarding all jobs.
func (f *Factory) Reset() {
	f.resetBase()
	f.active = nil
	f.queue = nil
	f.produced = 0
}

// Handle processes one inbound message.
func (f *Factory) Handle(msg bus.Message) error {
	if f.duplicate(msg) {
		return nil
	}
	switch p := msg.Payload.(type) {
	case bus.FactoryOrder:
		if p.Quantity <= 0 || p.OrderID == "" || p.Requester == "" {
			slog.Warn("factory order rejected", "factory", f.id, "order", p.OrderID)
			return ErrBadMessage
		}
		f.queue = append(f.queue, &productionJob{
			orderID:   p.OrderID,
			productID: p.ProductID,
			quantity:  p.Quantity,
			requester: p.Requester,
			remaining: f.cfg.ProductionTime,
		})
		slog.Info("production queued", "factory", f.id, "order", p.OrderID,
			"product", p.ProductID, "quantity", p.Quantity)
	default:
		f.unexpected(msg)
	}
	return nil
}

// Step advances the active lines, ships finished jobs, then admits queued
// orders into freed lines. A job admitted this tick does not also advance
// this tick, so a job always spends ProductionTime full ticks on a line.
func (f *Factory) Step(tick uint64) []Event {
	f.advance(tick)
	f.admit()
	return f.drain()
}

func (f *Factory) advance(tick uint64) {
	var running []*productionJob
	for _, job := range f.active {
		job.remaining--
		if job.remaining > 0 {
			running = append(running, job)
			continue
		}
		f.produced += job.quantity
		f.send(job.requester, tick, bus.ProductionComplete{
			OrderID:   job.orderID,
			ProductID: job.productID,
			Quantity:  job.quantity,
		})
		f.emit(ProductionCompleted{
			FactoryID: f.id,
			OrderID:   job.orderID,
			ProductID: job.productID,
			Quantity:  job.quantity,
		})
		slog.Info("production complete", "factory", f.id, "order", job.orderID,
			"product", job.productID, "quantity", job.quantity)
	}
	f.active = running
}

func (f *Factory) admit() {
	for len(f.active) < f.cfg.Capacity && len(f.queue) > 0 {
		job := f.queue[0]
		f.queue = f.queue[1:]
		f.active = append(f.active, job)
		f.emit(ProductionStarted{
			FactoryID: f.id,
			OrderID:   job.orderID,
			ProductID: job.productID,
			Quantity:  job.quantity,
		})
		slog.Info("production started", "factory", f.id, "order", job.orderID,
			"product", job.productID, "quantity", job.quantity)
	}
}

// ActiveJobs returns the number of orders currently in production.
func (f *Factory) ActiveJobs() int {
	return len(f.active)
}

// QueuedJobs returns the number of orders waiting for a line.
func (f *Factory) QueuedJobs() int {
	return len(f.queue)
}

// StateSnapshot returns the factory state subset for the snapshot boundary.
func (f *Factory) StateSnapshot() map[string]any {
	return map[string]any{
		"capacity":       f.cfg.Capacity,
		"active_jobs":    len(f.active),
		"queued_jobs":    len(f.queue),
		"units_produced": f.produced,
	}
}

// Package metrics aggregates the domain event stream into the run's
// financial and fulfillment totals.
package metrics

import (
	"math"

	"github.com/talgya/supply-sim/internal/agents"
)

// Weights control how the efficiency score blends fulfillment and
// profitability. They should sum to 1.
type Weights struct {
	Fulfillment float64 `yaml:"fulfillment" json:"fulfillment"`
	Profit      float64 `yaml:"profit" json:"profit"`
}

// DefaultWeights favors fulfillment over margin.
var DefaultWeights = Weights{Fulfillment: 0.6, Profit: 0.4}

// Metrics is a point-in-time copy of the tracker's totals. Safe to hand to
// the API and persistence layers without further locking.
type Metrics struct {
	Revenue     float64 `json:"revenue"`
	StorageCost float64 `json:"storage_cost"`
	LostSales   float64 `json:"lost_sales"` // Revenue missed to stockouts
	NetProfit   float64 `json:"net_profit"`

	UnitsSold     int `json:"units_sold"`
	UnitsLost     int `json:"units_lost"`
	UnitsProduced int `json:"units_produced"`
	Deliveries    int `json:"deliveries"`

	OrdersPlaced    int `json:"orders_placed"`
	OrdersFulfilled int `json:"orders_fulfilled"`
	OrdersCancelled int `json:"orders_cancelled"`

	FulfillmentRate float64 `json:"fulfillment_rate"`
	EfficiencyScore float64 `json:"efficiency_score"`

	RevenueByAgent map[string]float64 `json:"revenue_by_agent"`
	StorageByAgent map[string]float64 `json:"storage_by_agent"`
}

// Tracker consumes domain events and maintains running totals. It is not
// safe for concurrent use; the simulation manager owns it and exposes
// snapshots across the API boundary.
type Tracker struct {
	weights Weights
	m       Metrics
}

// NewTracker creates a tracker. Zero weights fall back to DefaultWeights.
func NewTracker(w Weights) *Tracker {
	if w.Fulfillment == 0 && w.Profit == 0 {
		w = DefaultWeights
	}
	t := &Tracker{weights: w}
	t.Reset()
	return t
}

// Reset zeroes all totals.
func (t *Tracker) Reset() {
	t.m = Metrics{
		RevenueByAgent: make(map[string]float64),
		StorageByAgent: make(map[string]float64),
	}
}

// Record folds one event into the totals. Events the tracker has no
// financial interest in are ignored.
func (t *Tracker) Record(ev agents.Event) {
	switch e := ev.(type) {
	case agents.Sale:
		amount := float64(e.Quantity) * e.UnitPrice
		t.m.Revenue += amount
		t.m.UnitsSold += e.Quantity
		t.m.RevenueByAgent[e.AgentID] += amount
	case agents.Stockout:
		t.m.LostSales += float64(e.Quantity) * e.UnitPrice
		t.m.UnitsLost += e.Quantity
	case agents.StorageCharge:
		amount := float64(e.Quantity) * e.CostPerUnit
		t.m.StorageCost += amount
		t.m.StorageByAgent[e.AgentID] += amount
	case agents.OrderPlaced:
		t.m.OrdersPlaced++
	case agents.OrderFulfilled:
		t.m.OrdersFulfilled++
	case agents.OrderCancelled:
		t.m.OrdersCancelled++
	case agents.DeliveryCompleted:
		t.m.Deliveries++
	case agents.ProductionCompleted:
		t.m.UnitsProduced += e.Quantity
	}
}

// RecordAll folds a batch of events.
func (t *Tracker) RecordAll(evs []agents.Event) {
	for _, ev := range evs {
		t.Record(ev)
	}
}

// Snapshot returns a copy of the totals with the derived figures filled in.
func (t *Tracker) Snapshot() Metrics {
	out := t.m
	out.NetProfit = out.Revenue - out.StorageCost
	out.FulfillmentRate = fulfillmentRate(out)
	out.EfficiencyScore = t.score(out)

	out.RevenueByAgent = make(map[string]float64, len(t.m.RevenueByAgent))
	for id, v := range t.m.RevenueByAgent {
		out.RevenueByAgent[id] = v
	}
	out.StorageByAgent = make(map[string]float64, len(t.m.StorageByAgent))
	for id, v := range t.m.StorageByAgent {
		out.StorageByAgent[id] = v
	}
	return out
}

func fulfillmentRate(m Metrics) float64 {
	resolved := m.OrdersFulfilled + m.OrdersCancelled
	if resolved == 0 {
		return 1
	}
	return float64(m.OrdersFulfilled) / float64(resolved)
}

// score blends fulfillment rate with profit margin. Margin is net profit
// over potential revenue (earned plus lost), clamped to [0,1] so early
// storage-cost-only ticks do not drive the score negative.
func (t *Tracker) score(m Metrics) float64 {
	potential := m.Revenue + m.LostSales
	margin := 0.0
	if potential > 0 {
		margin = math.Max(0, math.Min(1, m.NetProfit/potential))
	}
	return t.weights.Fulfillment*m.FulfillmentRate + t.weights.Profit*margin
}

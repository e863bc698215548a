package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/talgya/supply-sim/internal/agents"
)

func TestTrackerTotals(t *testing.T) {
	tr := NewTracker(DefaultWeights)

	tr.RecordAll([]agents.Event{
		agents.Sale{AgentID: "store-1", ProductID: "widget", Quantity: 5, UnitPrice: 10},
		agents.Sale{AgentID: "store-2", ProductID: "widget", Quantity: 3, UnitPrice: 10},
		agents.Stockout{AgentID: "store-1", ProductID: "widget", Quantity: 2, UnitPrice: 10},
		agents.StorageCharge{AgentID: "warehouse-1", ProductID: "widget", Quantity: 100, CostPerUnit: 0.05},
		agents.OrderPlaced{AgentID: "store-1", OrderID: "o1", ProductID: "widget", Quantity: 50, SupplierID: "warehouse-1"},
		agents.OrderFulfilled{AgentID: "warehouse-1", OrderID: "o1"},
		agents.DeliveryCompleted{TruckID: "truck-1", OrderID: "o1", ProductID: "widget", Quantity: 50, Location: "loc-store-1"},
		agents.ProductionCompleted{FactoryID: "factory-1", OrderID: "r1", ProductID: "widget", Quantity: 150},
	})

	m := tr.Snapshot()
	assert.Equal(t, 80.0, m.Revenue)
	assert.Equal(t, 5.0, m.StorageCost)
	assert.Equal(t, 20.0, m.LostSales)
	assert.Equal(t, 75.0, m.NetProfit)
	assert.Equal(t, 8, m.UnitsSold)
	assert.Equal(t, 2, m.UnitsLost)
	assert.Equal(t, 150, m.UnitsProduced)
	assert.Equal(t, 1, m.Deliveries)
	assert.Equal(t, 1, m.OrdersPlaced)
	assert.Equal(t, 1, m.OrdersFulfilled)
	assert.Equal(t, 50.0, m.RevenueByAgent["store-1"])
	assert.Equal(t, 30.0, m.RevenueByAgent["store-2"])
	assert.Equal(t, 5.0, m.StorageByAgent["warehouse-1"])
}

func TestTrackerFulfillmentRate(t *testing.T) {
	tr := NewTracker(DefaultWeights)

	assert.Equal(t, 1.0, tr.Snapshot().FulfillmentRate, "no resolved orders counts as perfect")

	tr.Record(agents.OrderFulfilled{AgentID: "w", OrderID: "o1"})
	tr.Record(agents.OrderFulfilled{AgentID: "w", OrderID: "o2"})
	tr.Record(agents.OrderFulfilled{AgentID: "w", OrderID: "o3"})
	tr.Record(agents.OrderCancelled{AgentID: "w", OrderID: "o4", Reason: "order expired"})

	assert.Equal(t, 0.75, tr.Snapshot().FulfillmentRate)
}

func TestTrackerEfficiencyScoreBlendsWeights(t *testing.T) {
	tr := NewTracker(Weights{Fulfillment: 0.6, Profit: 0.4})

	// Revenue 100, no costs or stockouts: margin 1. All orders fulfilled.
	tr.Record(agents.Sale{AgentID: "s", ProductID: "widget", Quantity: 10, UnitPrice: 10})
	tr.Record(agents.OrderFulfilled{AgentID: "w", OrderID: "o1"})

	assert.InDelta(t, 1.0, tr.Snapshot().EfficiencyScore, 1e-9)

	// Heavy storage costs push margin to zero but not below.
	tr.Record(agents.StorageCharge{AgentID: "w", ProductID: "widget", Quantity: 10000, CostPerUnit: 1})
	m := tr.Snapshot()
	assert.InDelta(t, 0.6, m.EfficiencyScore, 1e-9, "negative margin clamps to zero")
}

func TestTrackerZeroWeightsFallBackToDefault(t *testing.T) {
	tr := NewTracker(Weights{})
	tr.Record(agents.OrderFulfilled{AgentID: "w", OrderID: "o1"})
	assert.InDelta(t, DefaultWeights.Fulfillment, tr.Snapshot().EfficiencyScore, 1e-9)
}

func TestTrackerSnapshotIsACopy(t *testing.T) {
	tr := NewTracker(DefaultWeights)
	tr.Record(agents.Sale{AgentID: "s", ProductID: "widget", Quantity: 1, UnitPrice: 10})

	snap := tr.Snapshot()
	snap.RevenueByAgent["s"] = 999
	snap.Revenue = 999

	fresh := tr.Snapshot()
	assert.Equal(t, 10.0, fresh.Revenue)
	assert.Equal(t, 10.0, fresh.RevenueByAgent["s"])
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker(DefaultWeights)
	tr.Record(agents.Sale{AgentID: "s", ProductID: "widget", Quantity: 4, UnitPrice: 10})
	tr.Reset()

	m := tr.Snapshot()
	assert.Zero(t, m.Revenue)
	assert.Empty(t, m.RevenueByAgent)
}
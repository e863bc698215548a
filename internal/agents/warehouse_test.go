package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/economy"
)

func newTestWarehouse(b *bus.Bus, trucks []string, stock int) *Warehouse {
	return NewWarehouse(WarehouseConfig{
		ID:               "warehouse-1",
		LocationID:       "loc-warehouse-1",
		FactoryID:        "factory-1",
		Inventory:        economy.Inventory{"widget": stock},
		ReorderThreshold: 0,
		ReorderQuantity:  100,
		TruckIDs:         trucks,
		OrderTTL:         0,
	}, widgetCatalog, b)
}

func orderRequest(id string, qty int) bus.Message {
	return bus.Message{
		ID: "msg-" + id, Sender: "store-1", Recipient: "warehouse-1",
		Type: bus.TypeOrderRequest, Tick: 1,
		Payload: bus.OrderRequest{
			OrderID: id, ProductID: "widget", Quantity: qty,
			Requester: "store-1", DeliveryLocation: "loc-store-1",
		},
	}
}

func TestWarehouseDispatchesWhenStockAndTruckAvailable(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("truck-1")
	w := newTestWarehouse(b, []string{"truck-1"}, 100)

	require.NoError(t, w.Handle(orderRequest("o1", 40)))
	evs := w.Step(2)

	var dispatched TruckDispatched
	found := false
	for _, ev := range evs {
		if d, ok := ev.(TruckDispatched); ok {
			dispatched = d
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, "truck-1", dispatched.TruckID)
	assert.Equal(t, 40, dispatched.Quantity)
	assert.Equal(t, "loc-store-1", dispatched.Destination)

	assert.Equal(t, 60, w.InventoryLevel("widget"))
	assert.Equal(t, 0, w.IdleTrucks())
	assert.Equal(t, 0, w.HeldOrders())
	assert.Equal(t, economy.StatusInTransit, w.Order("o1").Status)

	b.Flush()
	msgs := b.Drain("truck-1")
	require.Len(t, msgs, 1)
	cmd := msgs[0].Payload.(bus.DispatchTruck)
	assert.Equal(t, "loc-warehouse-1", cmd.Origin)
	assert.Equal(t, "store-1", cmd.Recipient)
}

func TestWarehouseHoldsWhenNoTruck(t *testing.T) {
	b := bus.New(0)
	w := newTestWarehouse(b, nil, 100)

	require.NoError(t, w.Handle(orderRequest("o1", 40)))
	w.Step(2)

	assert.Equal(t, 1, w.HeldOrders())
	assert.Equal(t, economy.StatusPending, w.Order("o1").Status)
	assert.Equal(t, 100, w.InventoryLevel("widget"), "stock untouched while held")
}

func TestWarehouseHoldsUntilRestocked(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("truck-1")
	w := newTestWarehouse(b, []string{"truck-1"}, 10)

	require.NoError(t, w.Handle(orderRequest("o1", 40)))
	w.Step(2)
	assert.Equal(t, 1, w.HeldOrders())

	require.NoError(t, w.Handle(bus.Message{
		ID: "m-prod", Sender: "factory-1", Recipient: "warehouse-1",
		Type: bus.TypeProductionComplete, Tick: 3,
		Payload: bus.ProductionComplete{OrderID: "r1", ProductID: "widget", Quantity: 100},
	}))
	w.Step(4)

	assert.Equal(t, 0, w.HeldOrders())
	assert.Equal(t, economy.StatusInTransit, w.Order("o1").Status)
	assert.Equal(t, 70, w.InventoryLevel("widget"))
}

func TestWarehouseHeldOrdersRetriedFIFO(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("truck-1")
	w := newTestWarehouse(b, []string{"truck-1"}, 100)

	require.NoError(t, w.Handle(orderRequest("o1", 60)))
	require.NoError(t, w.Handle(orderRequest("o2", 60)))
	w.Step(2)

	// Only one truck: the older order ships first.
	assert.Equal(t, economy.StatusInTransit, w.Order("o1").Status)
	assert.Equal(t, economy.StatusPending, w.Order("o2").Status)
	assert.Equal(t, 1, w.HeldOrders())
}

func TestWarehouseExpiresStaleOrders(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("store-1")
	w := NewWarehouse(WarehouseConfig{
		ID: "warehouse-1", LocationID: "loc-warehouse-1", FactoryID: "factory-1",
		Inventory: economy.Inventory{"widget": 0}, ReorderThreshold: 0, ReorderQuantity: 100,
		OrderTTL: 5,
	}, widgetCatalog, b)

	require.NoError(t, w.Handle(orderRequest("o1", 40))) // Created at tick 1.
	w.Step(3)
	assert.Equal(t, economy.StatusPending, w.Order("o1").Status)

	evs := w.Step(6)
	assert.Equal(t, economy.StatusCancelled, w.Order("o1").Status)

	cancelled := false
	for _, ev := range evs {
		if c, ok := ev.(OrderCancelled); ok {
			cancelled = true
			assert.Equal(t, "o1", c.OrderID)
		}
	}
	assert.True(t, cancelled)

	b.Flush()
	msgs := b.Drain("store-1")
	require.Len(t, msgs, 1)
	assert.Equal(t, bus.TypeOrderRejected, msgs[0].Type)
}

func TestWarehouseCompletesDeliveryAndReclaimsTruck(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("truck-1")
	w := newTestWarehouse(b, []string{"truck-1"}, 100)

	require.NoError(t, w.Handle(orderRequest("o1", 40)))
	w.Step(2)
	require.Equal(t, 0, w.IdleTrucks())

	require.NoError(t, w.Handle(bus.Message{
		ID: "m-done", Sender: "truck-1", Recipient: "warehouse-1",
		Type: bus.TypeDeliveryComplete, Tick: 6,
		Payload: bus.DeliveryComplete{OrderID: "o1", ProductID: "widget", Quantity: 40, Location: "loc-store-1"},
	}))
	require.NoError(t, w.Handle(bus.Message{
		ID: "m-avail", Sender: "truck-1", Recipient: "warehouse-1",
		Type: bus.TypeTruckAvailable, Tick: 6,
		Payload: bus.TruckAvailable{TruckID: "truck-1"},
	}))

	assert.Equal(t, economy.StatusFulfilled, w.Order("o1").Status)
	assert.Equal(t, 1, w.IdleTrucks())

	evs := w.Step(7)
	fulfilled := false
	for _, ev := range evs {
		if _, ok := ev.(OrderFulfilled); ok {
			fulfilled = true
		}
	}
	assert.True(t, fulfilled)
}

func TestWarehouseRestocksFromFactory(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("factory-1")
	w := NewWarehouse(WarehouseConfig{
		ID: "warehouse-1", LocationID: "loc-warehouse-1", FactoryID: "factory-1",
		Inventory: economy.Inventory{"widget": 5}, ReorderThreshold: 10, ReorderQuantity: 100,
	}, widgetCatalog, b)

	w.Step(1)
	w.Step(2) // Already pending: no second order.
	b.Flush()

	msgs := b.Drain("factory-1")
	require.Len(t, msgs, 1)
	order := msgs[0].Payload.(bus.FactoryOrder)
	assert.Equal(t, 100, order.Quantity)
	assert.Equal(t, "warehouse-1", order.Requester)
}

func TestWarehouseDuplicateOrderRequestIgnored(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("truck-1")
	w := newTestWarehouse(b, []string{"truck-1"}, 100)

	msg := orderRequest("o1", 40)
	require.NoError(t, w.Handle(msg))
	require.NoError(t, w.Handle(msg)) // Same envelope id: dedupe window.

	// Same order id on a fresh envelope is also ignored.
	again := orderRequest("o1", 40)
	again.ID = "msg-o1-retry"
	require.NoError(t, w.Handle(again))

	w.Step(2)
	assert.Equal(t, 60, w.InventoryLevel("widget"), "order dispatched once")
}

func TestWarehouseRejectsMalformedOrder(t *testing.T) {
	b := bus.New(0)
	w := newTestWarehouse(b, []string{"truck-1"}, 100)

	err := w.Handle(orderRequest("bad", -5))
	assert.ErrorIs(t, err, economy.ErrInvalidOrder)
	assert.Equal(t, 0, w.HeldOrders())
}

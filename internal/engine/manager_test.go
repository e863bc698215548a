package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/supply-sim/internal/agents"
	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/config"
	"github.com/talgya/supply-sim/internal/economy"
	"github.com/talgya/supply-sim/internal/metrics"
)

// pipelineScenario wires one of everything with deterministic demand so the
// full order lifecycle can be traced tick by tick.
func pipelineScenario() *config.Scenario {
	return &config.Scenario{
		Name: "pipeline", Seed: 1, MailboxSize: 100,
		Weights: metrics.DefaultWeights,
		Products: []config.Product{
			{ID: "widget", Name: "Widget", UnitPrice: 10, StorageCost: 0.05},
		},
		Locations: []config.Location{
			{ID: "loc-f", Name: "Plant", X: 0, Y: 40, Type: "factory"},
			{ID: "loc-w", Name: "Depot", X: 0, Y: 20, Type: "warehouse"},
			{ID: "loc-s", Name: "Shop", X: 0, Y: 0, Type: "store"},
		},
		Factories: []config.Factory{
			{ID: "factory-1", Location: "loc-f", Capacity: 1, ProductionTime: 3},
		},
		Warehouses: []config.Warehouse{
			{
				ID: "warehouse-1", Location: "loc-w", Factory: "factory-1",
				Inventory: map[string]int{"widget": 200}, ReorderThreshold: 50, ReorderQuantity: 150,
				Trucks: []config.Truck{{ID: "truck-1", Speed: 10, Capacity: 100}},
			},
		},
		Stores: []config.Store{
			{
				ID: "store-1", Location: "loc-s", Warehouse: "warehouse-1",
				Inventory: map[string]int{"widget": 5}, ReorderThreshold: 10, ReorderQuantity: 50,
				DemandRate: 0,
			},
		},
	}
}

func TestBuildValidatesScenario(t *testing.T) {
	bad := pipelineScenario()
	bad.Stores[0].Warehouse = "ghost"
	_, err := Build(bad)
	assert.Error(t, err)

	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	assert.Equal(t, StatusStopped, mgr.Status())
	assert.NotNil(t, mgr.Agent("store-1"))
	assert.NotNil(t, mgr.Agent("truck-1"))
}

func TestStepOnlyAdvancesWhenRunning(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)

	assert.Nil(t, mgr.Step(), "stopped simulation does not step")
	assert.Zero(t, mgr.Tick())

	mgr.Start()
	mgr.Step()
	assert.Equal(t, uint64(1), mgr.Tick())

	mgr.Pause()
	mgr.Step()
	assert.Equal(t, uint64(1), mgr.Tick(), "paused simulation does not step")

	mgr.Start() // Resume from pause.
	mgr.Step()
	assert.Equal(t, uint64(2), mgr.Tick())
}

func TestLifecycleNoOpGuards(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)

	mgr.Pause() // Pausing a stopped simulation does nothing.
	assert.Equal(t, StatusStopped, mgr.Status())

	mgr.Start()
	mgr.Start() // Double start is harmless.
	assert.Equal(t, StatusRunning, mgr.Status())

	mgr.Stop()
	mgr.Stop()
	assert.Equal(t, StatusStopped, mgr.Status())
}

func TestMessagesDeliverNextTick(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	mgr.Start()

	// Tick 1: the store is below threshold and publishes its reorder. The
	// warehouse must not see it within the same tick.
	evs := mgr.Step()
	placed := false
	for _, ev := range evs {
		switch ev.(type) {
		case agents.OrderPlaced:
			placed = true
		case agents.TruckDispatched:
			t.Fatal("warehouse reacted to a message published this tick")
		}
	}
	require.True(t, placed)

	// Tick 2: the warehouse handles the order and dispatches.
	evs = mgr.Step()
	dispatched := false
	for _, ev := range evs {
		if _, ok := ev.(agents.TruckDispatched); ok {
			dispatched = true
		}
	}
	assert.True(t, dispatched)
}

func TestOrderLifecycleEndToEnd(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	mgr.Start()

	// Tick 1 order placed, tick 2 dispatched, tick 3 loading, ticks 4-5
	// in transit (20 units at speed 10), tick 5 delivered, tick 6 settled.
	for i := 0; i < 6; i++ {
		mgr.Step()
	}

	m := mgr.Metrics()
	assert.Equal(t, 1, m.OrdersPlaced)
	assert.Equal(t, 1, m.OrdersFulfilled)
	assert.Equal(t, 1, m.Deliveries)
	assert.Zero(t, m.OrdersCancelled)

	store := mgr.Agent("store-1")
	assert.Equal(t, 55, store.StateSnapshot()["inventory"].(economy.Inventory)["widget"])
}

func TestAgentPanicIsIsolated(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)

	boom := &panicAgent{id: "boom"}
	require.NoError(t, mgr.Register(boom))
	mgr.Start()

	evs := mgr.Step()
	var fault agents.AgentFault
	found := false
	for _, ev := range evs {
		if f, ok := ev.(agents.AgentFault); ok {
			fault = f
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, "boom", fault.AgentID)
	assert.False(t, boom.Active(), "panicking agent is deactivated")

	// The rest of the world keeps stepping.
	mgr.Step()
	assert.Equal(t, uint64(2), mgr.Tick())
	assert.True(t, mgr.Agent("store-1").Active())
}

func TestResetRestoresInitialState(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	mgr.Start()
	for i := 0; i < 6; i++ {
		mgr.Step()
	}
	require.NotZero(t, mgr.Metrics().OrdersFulfilled)

	mgr.Reset()

	assert.Zero(t, mgr.Tick())
	assert.Equal(t, StatusStopped, mgr.Status())
	assert.Zero(t, mgr.Metrics().OrdersPlaced)
	store := mgr.Agent("store-1")
	assert.Equal(t, 5, store.StateSnapshot()["inventory"].(economy.Inventory)["widget"])

	// A reset run replays the same lifecycle.
	mgr.Start()
	for i := 0; i < 6; i++ {
		mgr.Step()
	}
	assert.Equal(t, 1, mgr.Metrics().OrdersFulfilled)
}

func TestSinksReceiveTickEvents(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)

	var got []agents.Event
	var lastTick uint64
	mgr.AddSink(func(tick uint64, evs []agents.Event, m metrics.Metrics) {
		lastTick = tick
		got = append(got, evs...)
	})

	mgr.Start()
	mgr.Step()

	assert.Equal(t, uint64(1), lastTick)
	assert.NotEmpty(t, got)
}

func TestSnapshotViewsAllAgents(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)

	snap := mgr.Snapshot()
	assert.Len(t, snap.Agents, 4)
	assert.Equal(t, "store", snap.Agents["store-1"].Kind)
	assert.Equal(t, "loc-s", snap.Agents["store-1"].Location)
	assert.True(t, snap.Agents["truck-1"].Active)
	assert.Equal(t, StatusStopped, snap.Status)
}

func TestAgentViewSafeWhileStepping(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	mgr.Start()

	// Observe agent state from another goroutine while the simulation runs,
	// the way the HTTP layer does. AgentView must capture the state under
	// the manager lock; reading the live agent would race with serveDemand.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			mgr.Step()
		}
	}()
	for i := 0; i < 200; i++ {
		view, ok := mgr.AgentView("store-1")
		require.True(t, ok)
		require.NotNil(t, view.State["inventory"])
		mgr.Snapshot()
	}
	<-done

	_, ok := mgr.AgentView("nobody")
	assert.False(t, ok)
}

func TestActivityFeedRecordsTheRun(t *testing.T) {
	mgr, err := Build(pipelineScenario())
	require.NoError(t, err)
	mgr.Start()
	mgr.Step()
	mgr.Step()

	entries := mgr.RecentActivity(10)
	require.NotEmpty(t, entries)
	assert.Equal(t, uint64(1), entries[0].Tick)

	categories := map[string]bool{}
	for _, e := range entries {
		categories[e.Category] = true
	}
	assert.True(t, categories["orders"], "reorder shows up in the feed")
	assert.True(t, categories["logistics"], "dispatch shows up in the feed")
}

func TestDefaultScenarioRunsClean(t *testing.T) {
	mgr, err := Build(config.Default())
	require.NoError(t, err)
	mgr.Start()

	for i := 0; i < 200; i++ {
		for _, ev := range mgr.Step() {
			if f, ok := ev.(agents.AgentFault); ok {
				t.Fatalf("agent %s faulted: %s", f.AgentID, f.Reason)
			}
		}
	}

	m := mgr.Metrics()
	assert.Positive(t, m.Revenue, "stores sell under the default demand rate")
	assert.Positive(t, m.OrdersPlaced)
	assert.Positive(t, m.Deliveries)
}

// panicAgent blows up on its first step.
type panicAgent struct {
	id   string
	dead bool
}

func (p *panicAgent) ID() string                    { return p.id }
func (p *panicAgent) Kind() agents.Kind             { return agents.Kind("test") }
func (p *panicAgent) LocationID() string            { return "" }
func (p *panicAgent) Active() bool                  { return !p.dead }
func (p *panicAgent) Deactivate()                   { p.dead = true }
func (p *panicAgent) Handle(bus.Message) error      { return nil }
func (p *panicAgent) Reset()                        { p.dead = false }
func (p *panicAgent) StateSnapshot() map[string]any { return nil }
func (p *panicAgent) Step(uint64) []agents.Event    { panic("intentional failure") }

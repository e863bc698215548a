// Package engine provides the tick-based simulation loop: the manager that
// steps agents and the runner that paces it against the wall clock.
package engine

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/talgya/supply-sim/internal/agents"
	"github.com/talgya/supply-sim/internal/bus"
	"github.com/talgya/supply-sim/internal/city"
	"github.com/talgya/supply-sim/internal/metrics"
)

// Status is the manager lifecycle state.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
)

// EventSink receives the events and metrics of each completed tick. Sinks
// run under the manager lock and must not call back into the manager.
type EventSink func(tick uint64, evs []agents.Event, m metrics.Metrics)

// Snapshot is the read-only view of the whole simulation handed across the
// API boundary.
type Snapshot struct {
	Tick    uint64               `json:"tick"`
	Status  Status               `json:"status"`
	Metrics metrics.Metrics      `json:"metrics"`
	Agents  map[string]AgentView `json:"agents"`
	Bus     map[string]any       `json:"bus"`
}

// AgentView is one agent's public state.
type AgentView struct {
	Kind     string         `json:"kind"`
	Location string         `json:"location"`
	Active   bool           `json:"active"`
	State    map[string]any `json:"state"`
}

// Manager owns the simulation: the bus, the map, the agents in registration
// order, and the trackers. All mutation goes through its methods under one
// lock, so the runner, the API, and tests can share it.
type Manager struct {
	mu sync.Mutex

	status  Status
	tick    uint64
	b       *bus.Bus
	cityMap *city.Map
	agents  []agents.Agent
	index   map[string]agents.Agent
	tracker *metrics.Tracker
	feed    *Feed
	sinks   []EventSink
}

// NewManager creates a stopped manager over the given world.
func NewManager(b *bus.Bus, cm *city.Map, tracker *metrics.Tracker) *Manager {
	return &Manager{
		status:  StatusStopped,
		b:       b,
		cityMap: cm,
		index:   make(map[string]agents.Agent),
		tracker: tracker,
		feed:    NewFeed(),
	}
}

// Register adds an agent. Registration order is step order and is stable
// for the life of the manager.
func (m *Manager) Register(a agents.Agent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.index[a.ID()]; dup {
		return fmt.Errorf("agent %q already registered", a.ID())
	}
	m.agents = append(m.agents, a)
	m.index[a.ID()] = a
	return nil
}

// AddSink registers an event sink. Call before Start.
func (m *Manager) AddSink(s EventSink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// Start moves the simulation to running. Starting a running simulation is
// a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusRunning {
		return
	}
	prev := m.status
	m.status = StatusRunning
	slog.Info("simulation started", "tick", m.tick, "from", prev)
}

// Pause suspends stepping without losing state. Only a running simulation
// can pause.
func (m *Manager) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		return
	}
	m.status = StatusPaused
	slog.Info("simulation paused", "tick", m.tick)
}

// Stop halts the simulation. State is kept for inspection until Reset.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusStopped {
		return
	}
	m.status = StatusStopped
	slog.Info("simulation stopped", "tick", m.tick)
}

// Reset returns the world to its initial configured state: tick zero, empty
// bus, every agent back to its starting inventory and status, zeroed
// metrics. The simulation is stopped afterwards.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.b.Reset()
	for _, a := range m.agents {
		m.b.Subscribe(a.ID())
		a.Reset()
	}
	m.tracker.Reset()
	m.feed.Reset()
	m.tick = 0
	m.status = StatusStopped
	slog.Info("simulation reset", "agents", len(m.agents))
}

// Step advances the simulation one tick if it is running. Each active agent
// first handles its delivered mail, then takes its decision step; messages
// published along the way are flushed at the end of the tick for delivery
// next tick. Returns the events of the tick.
func (m *Manager) Step() []agents.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != StatusRunning {
		return nil
	}
	return m.step()
}

// StepManual advances one tick regardless of lifecycle state, for tests and
// single-step debugging from the API.
func (m *Manager) StepManual() []agents.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.step()
}

func (m *Manager) step() []agents.Event {
	m.tick++
	var tickEvents []agents.Event

	for _, a := range m.agents {
		if !a.Active() {
			continue
		}
		evs := m.stepAgent(a)
		tickEvents = append(tickEvents, evs...)
	}

	for _, drop := range m.b.Flush() {
		tickEvents = append(tickEvents, agents.BusOverflow{
			Recipient: drop.Message.Recipient,
			Dropped:   1,
			Reason:    drop.Reason,
		})
	}

	m.tracker.RecordAll(tickEvents)
	for _, ev := range tickEvents {
		m.feed.Add(m.tick, ev)
	}
	if len(m.sinks) > 0 {
		snap := m.tracker.Snapshot()
		for _, sink := range m.sinks {
			sink(m.tick, tickEvents, snap)
		}
	}
	return tickEvents
}

// stepAgent runs one agent's tick under a recover guard. A panicking agent
// is deactivated and reported; the rest of the world keeps going.
func (m *Manager) stepAgent(a agents.Agent) (evs []agents.Event) {
	defer func() {
		if r := recover(); r != nil {
			a.Deactivate()
			slog.Error("agent step panicked, deactivating",
				"agent", a.ID(), "tick", m.tick, "panic", r)
			evs = append(evs, agents.AgentFault{
				AgentID: a.ID(),
				Reason:  fmt.Sprintf("panic: %v", r),
			})
		}
	}()

	for _, msg := range m.b.Drain(a.ID()) {
		if err := a.Handle(msg); err != nil {
			slog.Warn("message handling failed",
				"agent", a.ID(), "msg", msg.ID, "type", msg.Type, "err", err)
		}
	}
	return a.Step(m.tick)
}

// Tick returns the current tick count.
func (m *Manager) Tick() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// Status returns the lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Metrics returns a copy of the current totals.
func (m *Manager) Metrics() metrics.Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tracker.Snapshot()
}

// CityMap returns the shared city map. The map is immutable after setup.
func (m *Manager) CityMap() *city.Map {
	return m.cityMap
}

// Agent returns a registered agent by id, or nil. The returned agent is
// stepped concurrently by the runner; callers outside the step loop should
// read its state through AgentView instead.
func (m *Manager) Agent(id string) agents.Agent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index[id]
}

// AgentView returns one agent's public state, captured under the manager
// lock so it is safe against a concurrently running simulation.
func (m *Manager) AgentView(id string) (AgentView, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.index[id]
	if !ok {
		return AgentView{}, false
	}
	return AgentView{
		Kind:     string(a.Kind()),
		Location: a.LocationID(),
		Active:   a.Active(),
		State:    a.StateSnapshot(),
	}, true
}

// RecentActivity returns up to n feed entries, newest last.
func (m *Manager) RecentActivity(n int) []FeedEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.feed.Recent(n)
}

// Snapshot captures the full simulation view for the API and live push.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	views := make(map[string]AgentView, len(m.agents))
	for _, a := range m.agents {
		views[a.ID()] = AgentView{
			Kind:     string(a.Kind()),
			Location: a.LocationID(),
			Active:   a.Active(),
			State:    a.StateSnapshot(),
		}
	}
	return Snapshot{
		Tick:    m.tick,
		Status:  m.status,
		Metrics: m.tracker.Snapshot(),
		Agents:  views,
		Bus:     m.b.Stats(),
	}
}

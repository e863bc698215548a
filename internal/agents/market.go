package agents

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/supply-sim/internal/bus"
)

// MarketConfig holds the initial configuration of a market agent.
type MarketConfig struct {
	ID         string
	LocationID string
	StoreIDs   []string
	// BaseRate is the demand rate the noise curve oscillates around.
	BaseRate float64
	// Volatility scales the noise contribution; 0.3 means the smooth curve
	// stays within ±30% of BaseRate.
	Volatility float64
	// EventChance is the per-tick probability of starting a demand event
	// while none is active.
	EventChance float64
	Seed        int64
}

// marketEvent is a temporary demand shock on a subset of stores.
type marketEvent struct {
	kind       string
	stores     []string
	multiplier float64
	remaining  int
}

// Market perturbs store demand. A seeded simplex-noise walk provides the
// smooth background drift; on top of it, random spike/drop/regional events
// multiply demand for a window of ticks. Same seed, same demand history.
type Market struct {
	base
	cfg   MarketConfig
	noise opensimplex.Noise
	rng   *rand.Rand

	noisePos float64
	active   *marketEvent
	lastSent map[string]float64
}

// NewMarket creates a market agent subscribed to the bus.
func NewMarket(cfg MarketConfig, b *bus.Bus) *Market {
	if cfg.BaseRate <= 0 {
		cfg.BaseRate = 1
	}
	if cfg.Volatility < 0 {
		cfg.Volatility = 0
	}
	m := &Market{
		base: newBase(cfg.ID, KindMarket, cfg.LocationID, b),
		cfg:  cfg,
	}
	m.Reset()
	slog.Info("market initialized", "id", cfg.ID, "stores", len(cfg.StoreIDs),
		"base_rate", cfg.BaseRate, "volatility", cfg.Volatility, "seed", cfg.Seed)
	return m
}

// Reset restores the configured initial state, including the noise and
// random streams, so a reset run replays the same demand history.
func (m *Market) Reset() {
	m.resetBase()
	m.noise = opensimplex.NewNormalized(m.cfg.Seed)
	m.rng = rand.New(rand.NewSource(m.cfg.Seed))
	m.noisePos = 0
	m.active = nil
	m.lastSent = make(map[string]float64)
}

// Handle ignores everything; the market only produces messages.
func (m *Market) Handle(msg bus.Message) error {
	if m.duplicate(msg) {
		return nil
	}
	m.unexpected(msg)
	return nil
}

// Step advances the noise walk, ages or starts demand events, and pushes
// rate updates to stores whose effective rate moved.
func (m *Market) Step(tick uint64) []Event {
	m.noisePos += 0.08
	m.ageEvent()
	m.maybeStartEvent()
	m.pushRates(tick)
	return m.drain()
}

// baseRate is the smooth background rate at the current noise position.
func (m *Market) baseRate() float64 {
	// NewNormalized yields [0,1); recenter to [-1,1).
	n := 2*m.noise.Eval2(m.noisePos, 0) - 1
	return math.Max(0, m.cfg.BaseRate*(1+m.cfg.Volatility*n))
}

func (m *Market) ageEvent() {
	if m.active == nil {
		return
	}
	m.active.remaining--
	if m.active.remaining <= 0 {
		slog.Info("demand event ended", "market", m.id, "kind", m.active.kind)
		m.active = nil
	}
}

func (m *Market) maybeStartEvent() {
	if m.active != nil || len(m.cfg.StoreIDs) == 0 {
		return
	}
	if m.rng.Float64() >= m.cfg.EventChance {
		return
	}

	var ev marketEvent
	switch m.rng.Intn(3) {
	case 0:
		ev = marketEvent{kind: "demand_spike", multiplier: 1.5 + m.rng.Float64()*1.5}
		ev.stores = m.pickStores(1 + m.rng.Intn(len(m.cfg.StoreIDs)))
	case 1:
		ev = marketEvent{kind: "demand_drop", multiplier: 0.3 + m.rng.Float64()*0.4}
		ev.stores = m.pickStores(1 + m.rng.Intn(len(m.cfg.StoreIDs)))
	default:
		ev = marketEvent{kind: "regional_surge", multiplier: 1.3 + m.rng.Float64()*0.7}
		ev.stores = append([]string(nil), m.cfg.StoreIDs...)
	}
	ev.remaining = 5 + m.rng.Intn(11)
	m.active = &ev

	m.emit(DemandShifted{
		MarketID:   m.id,
		Kind:       ev.kind,
		Stores:     ev.stores,
		Multiplier: ev.multiplier,
	})
	slog.Info("demand event started", "market", m.id, "kind", ev.kind,
		"stores", len(ev.stores), "multiplier", ev.multiplier, "duration", ev.remaining)
}

// pickStores draws n distinct store ids, stable-sorted for determinism.
func (m *Market) pickStores(n int) []string {
	ids := append([]string(nil), m.cfg.StoreIDs...)
	m.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	picked := ids[:n]
	sort.Strings(picked)
	return picked
}

func (m *Market) pushRates(tick uint64) {
	rate := m.baseRate()
	for _, storeID := range m.cfg.StoreIDs {
		effective := rate
		if m.active != nil && contains(m.active.stores, storeID) {
			effective = rate * m.active.multiplier
		}
		if math.Abs(effective-m.lastSent[storeID]) < 0.01 {
			continue
		}
		m.lastSent[storeID] = effective
		m.send(storeID, tick, bus.DemandUpdate{Rate: effective, Source: m.id})
	}
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// ActiveEvent returns the kind of the running demand event, or "".
func (m *Market) ActiveEvent() string {
	if m.active == nil {
		return ""
	}
	return m.active.kind
}

// StateSnapshot returns the market state subset for the snapshot boundary.
func (m *Market) StateSnapshot() map[string]any {
	snap := map[string]any{
		"base_rate":    m.baseRate(),
		"stores":       len(m.cfg.StoreIDs),
		"active_event": m.ActiveEvent(),
	}
	if m.active != nil {
		snap["event_multiplier"] = m.active.multiplier
		snap["event_remaining"] = m.active.remaining
	}
	return snap
}

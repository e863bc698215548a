package agents

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/supply-sim/internal/bus"
)

func TestMarketPushesRateOnlyWhenChanged(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("store-1")
	b.Subscribe("store-2")
	m := NewMarket(MarketConfig{
		ID: "market-1", StoreIDs: []string{"store-1", "store-2"},
		BaseRate: 2, Volatility: 0, EventChance: 0, Seed: 7,
	}, b)

	m.Step(1)
	b.Flush()
	msgs := b.Drain("store-1")
	require.Len(t, msgs, 1)
	update := msgs[0].Payload.(bus.DemandUpdate)
	assert.Equal(t, 2.0, update.Rate)
	assert.Equal(t, "market-1", update.Source)

	// Zero volatility and no events: the rate is flat, so no further pushes.
	m.Step(2)
	m.Step(3)
	b.Flush()
	assert.Empty(t, b.Drain("store-1"))
	assert.Len(t, b.Drain("store-2"), 1)
}

func TestMarketEventsPerturbDemand(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("store-1")
	m := NewMarket(MarketConfig{
		ID: "market-1", StoreIDs: []string{"store-1"},
		BaseRate: 2, Volatility: 0, EventChance: 1, Seed: 3,
	}, b)

	evs := m.Step(1)
	require.NotEmpty(t, m.ActiveEvent(), "event chance 1 starts an event immediately")

	var shifted DemandShifted
	found := false
	for _, ev := range evs {
		if d, ok := ev.(DemandShifted); ok {
			shifted = d
			found = true
		}
	}
	require.True(t, found)
	assert.Equal(t, "market-1", shifted.MarketID)
	assert.NotEmpty(t, shifted.Stores)
	assert.Greater(t, shifted.Multiplier, 0.0)

	// Events run out after their window and the rate returns to base.
	for tick := uint64(2); tick <= 60 && m.ActiveEvent() != ""; tick++ {
		m.Step(tick)
	}
	// EventChance 1 starts a fresh event immediately after, so just check
	// the perturbed rates were actually sent.
	b.Flush()
	assert.NotEmpty(t, b.Drain("store-1"))
}

func TestMarketDeterministicFromSeed(t *testing.T) {
	run := func() []Event {
		b := bus.New(0)
		b.Subscribe("store-1")
		b.Subscribe("store-2")
		m := NewMarket(MarketConfig{
			ID: "market-1", StoreIDs: []string{"store-1", "store-2"},
			BaseRate: 2, Volatility: 0.3, EventChance: 0.2, Seed: 99,
		}, b)
		var all []Event
		for tick := uint64(1); tick <= 50; tick++ {
			all = append(all, m.Step(tick)...)
		}
		return all
	}

	assert.Equal(t, run(), run(), "same seed must replay the same demand history")
}

func TestMarketResetReplaysHistory(t *testing.T) {
	b := bus.New(0)
	b.Subscribe("store-1")
	m := NewMarket(MarketConfig{
		ID: "market-1", StoreIDs: []string{"store-1"},
		BaseRate: 2, Volatility: 0.5, EventChance: 0.3, Seed: 11,
	}, b)

	collect := func() []Event {
		var all []Event
		for tick := uint64(1); tick <= 30; tick++ {
			all = append(all, m.Step(tick)...)
		}
		return all
	}

	first := collect()
	m.Reset()
	second := collect()
	assert.Equal(t, first, second)
}

func TestMarketIgnoresInboundMessages(t *testing.T) {
	b := bus.New(0)
	m := NewMarket(MarketConfig{ID: "market-1", BaseRate: 1, Seed: 1}, b)

	err := m.Handle(bus.Message{
		ID: "m1", Sender: "store-1", Recipient: "market-1",
		Type: bus.TypeOrderRequest, Tick: 1,
		Payload: bus.OrderRequest{OrderID: "o1", ProductID: "widget", Quantity: 1, Requester: "store-1"},
	})
	assert.NoError(t, err)
}

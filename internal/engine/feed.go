package engine

import (
	"fmt"
	"strings"

	"github.com/talgya/supply-sim/internal/agents"
)

// feedCap bounds the activity feed; older entries are discarded.
const feedCap = 500

// FeedEntry is one line of the human-readable activity feed.
type FeedEntry struct {
	Tick        uint64 `json:"tick"`
	Category    string `json:"category"` // "sales", "orders", "logistics", "production", "market", "fault"
	Severity    string `json:"severity"` // "info" or "warn"
	Description string `json:"description"`
}

// Feed keeps the most recent notable simulation events for the API and the
// console. Not safe for concurrent use; the manager serializes access.
type Feed struct {
	entries []FeedEntry
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Reset discards all entries.
func (f *Feed) Reset() {
	f.entries = nil
}

// Add appends an entry for the event, trimming the ring when full.
func (f *Feed) Add(tick uint64, ev agents.Event) {
	entry := describe(ev)
	if entry.Description == "" {
		return
	}
	entry.Tick = tick
	f.entries = append(f.entries, entry)
	if len(f.entries) > feedCap {
		f.entries = f.entries[len(f.entries)-feedCap:]
	}
}

// Recent returns up to n entries, newest last.
func (f *Feed) Recent(n int) []FeedEntry {
	if n <= 0 || n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]FeedEntry, n)
	copy(out, f.entries[len(f.entries)-n:])
	return out
}

// describe renders an event as a feed entry. Events with no narrative value
// (storage charges) return a zero entry and are skipped.
func describe(ev agents.Event) FeedEntry {
	switch e := ev.(type) {
	case agents.Sale:
		return FeedEntry{Category: "sales", Severity: "info",
			Description: fmt.Sprintf("%s sold %d %s", e.AgentID, e.Quantity, e.ProductID)}
	case agents.Stockout:
		return FeedEntry{Category: "sales", Severity: "warn",
			Description: fmt.Sprintf("%s out of stock, %d %s unserved", e.AgentID, e.Quantity, e.ProductID)}
	case agents.OrderPlaced:
		return FeedEntry{Category: "orders", Severity: "info",
			Description: fmt.Sprintf("%s ordered %d %s from %s", e.AgentID, e.Quantity, e.ProductID, e.SupplierID)}
	case agents.OrderFulfilled:
		return FeedEntry{Category: "orders", Severity: "info",
			Description: fmt.Sprintf("order %s fulfilled by %s", e.OrderID, e.AgentID)}
	case agents.OrderCancelled:
		return FeedEntry{Category: "orders", Severity: "warn",
			Description: fmt.Sprintf("order %s cancelled by %s: %s", e.OrderID, e.AgentID, e.Reason)}
	case agents.TruckDispatched:
		return FeedEntry{Category: "logistics", Severity: "info",
			Description: fmt.Sprintf("%s sent %s to %s with %d %s", e.WarehouseID, e.TruckID, e.Destination, e.Quantity, e.ProductID)}
	case agents.DeliveryCompleted:
		return FeedEntry{Category: "logistics", Severity: "info",
			Description: fmt.Sprintf("%s delivered %d %s at %s", e.TruckID, e.Quantity, e.ProductID, e.Location)}
	case agents.ProductionStarted:
		return FeedEntry{Category: "production", Severity: "info",
			Description: fmt.Sprintf("%s started producing %d %s", e.FactoryID, e.Quantity, e.ProductID)}
	case agents.ProductionCompleted:
		return FeedEntry{Category: "production", Severity: "info",
			Description: fmt.Sprintf("%s finished %d %s", e.FactoryID, e.Quantity, e.ProductID)}
	case agents.DemandShifted:
		return FeedEntry{Category: "market", Severity: "warn",
			Description: fmt.Sprintf("%s: %s ×%.2f at %s", e.MarketID, e.Kind, e.Multiplier, strings.Join(e.Stores, ", "))}
	case agents.AgentFault:
		return FeedEntry{Category: "fault", Severity: "warn",
			Description: fmt.Sprintf("agent %s deactivated: %s", e.AgentID, e.Reason)}
	case agents.BusOverflow:
		return FeedEntry{Category: "fault", Severity: "warn",
			Description: fmt.Sprintf("mailbox of %s overflowed, %d dropped", e.Recipient, e.Dropped)}
	}
	return FeedEntry{}
}

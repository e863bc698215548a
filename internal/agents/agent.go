// Package agents provides the five supply-chain agent state machines and
// the base contract the simulation manager drives them through.
package agents

import (
	"errors"
	"log/slog"

	"github.com/talgya/supply-sim/internal/bus"
)

// Kind identifies the concrete agent variant.
type Kind string

const (
	KindStore     Kind = "store"
	KindWarehouse Kind = "warehouse"
	KindFactory   Kind = "factory"
	KindTruck     Kind = "truck"
	KindMarket    Kind = "market"
)

var (
	// ErrTruckBusy reports a dispatch sent to a truck that already has cargo.
	ErrTruckBusy = errors.New("truck busy")
	// ErrOverCapacity reports cargo exceeding a truck's capacity.
	ErrOverCapacity = errors.New("cargo exceeds capacity")
	// ErrBadMessage reports a well-formed message whose payload fails validation.
	ErrBadMessage = errors.New("malformed message payload")
)

// Agent is the contract every variant implements. Handle is a state
// transition for one message: idempotent against redelivery of the same
// message identity, and tolerant of unexpected types (ignored, logged).
// Step consumes nothing itself — the manager drains the mailbox and calls
// Handle first — then runs one unit of decision logic, publishing outbound
// messages on the bus and returning the domain events produced this tick.
type Agent interface {
	ID() string
	Kind() Kind
	LocationID() string
	Active() bool
	Deactivate()

	Handle(msg bus.Message) error
	Step(tick uint64) []Event

	// Reset restores the agent to its initial configured state.
	Reset()

	// StateSnapshot returns a read-only view of type-specific state for the
	// visualization boundary.
	StateSnapshot() map[string]any
}

// seenWindow bounds the per-agent duplicate-detection history.
const seenWindow = 256

// base carries the identity, bus handle, and bookkeeping shared by all
// variants. Variants embed it and call emit/duplicate from their own logic.
type base struct {
	id         string
	kind       Kind
	locationID string
	b          *bus.Bus
	active     bool

	events   []Event
	seen     map[string]struct{}
	seenRing []string
}

func newBase(id string, kind Kind, locationID string, b *bus.Bus) base {
	b.Subscribe(id)
	return base{
		id:         id,
		kind:       kind,
		locationID: locationID,
		b:          b,
		active:     true,
		seen:       make(map[string]struct{}),
	}
}

func (a *base) ID() string         { return a.id }
func (a *base) Kind() Kind         { return a.kind }
func (a *base) LocationID() string { return a.locationID }
func (a *base) Active() bool       { return a.active }
func (a *base) Deactivate()        { a.active = false }

// emit queues a domain event to be returned from the current Step.
func (a *base) emit(ev Event) {
	a.events = append(a.events, ev)
}

// drain returns and clears the events accumulated since the last drain.
func (a *base) drain() []Event {
	evs := a.events
	a.events = nil
	return evs
}

// send publishes a message to one recipient.
func (a *base) send(recipient string, tick uint64, payload bus.Payload) {
	a.b.Publish(a.id, recipient, tick, payload)
	slog.Debug("message sent", "from", a.id, "to", recipient, "type", payload.MessageType())
}

// duplicate reports whether this message identity was already handled, and
// records it if not. Handlers return early on duplicates so redelivery is a
// no-op.
func (a *base) duplicate(msg bus.Message) bool {
	if _, ok := a.seen[msg.ID]; ok {
		slog.Debug("duplicate message ignored", "agent", a.id, "msg", msg.ID)
		return true
	}
	a.seen[msg.ID] = struct{}{}
	a.seenRing = append(a.seenRing, msg.ID)
	if len(a.seenRing) > seenWindow {
		delete(a.seen, a.seenRing[0])
		a.seenRing = a.seenRing[1:]
	}
	return false
}

// unexpected logs a well-formed message of a type this agent does not
// consume. Never an error.
func (a *base) unexpected(msg bus.Message) {
	slog.Warn("unexpected message type ignored",
		"agent", a.id, "type", msg.Type, "sender", msg.Sender)
}

// resetBase clears transient bookkeeping on simulation reset.
func (a *base) resetBase() {
	a.active = true
	a.events = nil
	a.seen = make(map[string]struct{})
	a.seenRing = nil
}

package bus

import (
	"fmt"
	"log/slog"
	"sort"
)

// DefaultMailboxSize bounds each agent's mailbox. Delivery beyond the bound
// drops the oldest undelivered message rather than blocking the step loop.
const DefaultMailboxSize = 100

// Drop records a message discarded during flush, either because the
// recipient's mailbox overflowed or the recipient is unknown.
type Drop struct {
	Message Message
	Reason  string
}

// Bus routes messages between agents. Publish enqueues; Flush (called once
// per tick by the simulation manager) moves everything queued into recipient
// mailboxes for consumption on the next tick.
type Bus struct {
	mailboxSize int
	mailboxes   map[string][]Message
	pending     []Message
	seq         map[string]uint64 // Per-sender publish counter
}

// New creates a bus with the given mailbox bound (0 means DefaultMailboxSize).
func New(mailboxSize int) *Bus {
	if mailboxSize <= 0 {
		mailboxSize = DefaultMailboxSize
	}
	return &Bus{
		mailboxSize: mailboxSize,
		mailboxes:   make(map[string][]Message),
		seq:         make(map[string]uint64),
	}
}

// Subscribe registers a mailbox for an agent. Subscribing twice is harmless.
func (b *Bus) Subscribe(agentID string) {
	if _, ok := b.mailboxes[agentID]; !ok {
		b.mailboxes[agentID] = nil
	}
}

// Unsubscribe removes an agent's mailbox; queued messages for it are
// discarded at the next flush.
func (b *Bus) Unsubscribe(agentID string) {
	delete(b.mailboxes, agentID)
}

// Publish enqueues a message for delivery at the next flush. The envelope id
// is assigned here from the sender's publish counter so identical runs
// produce identical message identities.
func (b *Bus) Publish(sender, recipient string, tick uint64, payload Payload) Message {
	b.seq[sender]++
	msg := Message{
		ID:        fmt.Sprintf("%s/%d/%d", sender, tick, b.seq[sender]),
		Sender:    sender,
		Recipient: recipient,
		Type:      payload.MessageType(),
		Tick:      tick,
		Payload:   payload,
	}
	b.pending = append(b.pending, msg)
	return msg
}

// Flush moves all queued messages into recipient mailboxes and clears the
// queue. Broadcast messages fan out to every subscriber except the sender.
// Returns the messages dropped this flush (overflow or unknown recipient);
// dropping is never an error.
func (b *Bus) Flush() []Drop {
	var drops []Drop
	queued := b.pending
	b.pending = nil

	for _, msg := range queued {
		if msg.Recipient == Broadcast {
			for _, id := range b.subscriberIDs() {
				if id == msg.Sender {
					continue
				}
				fanned := msg
				fanned.Recipient = id
				drops = b.deliver(fanned, drops)
			}
			continue
		}
		drops = b.deliver(msg, drops)
	}
	return drops
}

func (b *Bus) deliver(msg Message, drops []Drop) []Drop {
	box, ok := b.mailboxes[msg.Recipient]
	if !ok {
		slog.Debug("message for unknown recipient discarded",
			"recipient", msg.Recipient, "type", msg.Type, "sender", msg.Sender)
		return append(drops, Drop{Message: msg, Reason: "unknown recipient"})
	}
	if len(box) >= b.mailboxSize {
		dropped := box[0]
		box = box[1:]
		slog.Warn("mailbox overflow, dropping oldest message",
			"recipient", msg.Recipient, "dropped_type", dropped.Type)
		drops = append(drops, Drop{Message: dropped, Reason: "mailbox overflow"})
	}
	b.mailboxes[msg.Recipient] = append(box, msg)
	return drops
}

// Drain empties and returns an agent's mailbox in FIFO order.
func (b *Bus) Drain(agentID string) []Message {
	box := b.mailboxes[agentID]
	if len(box) == 0 {
		return nil
	}
	b.mailboxes[agentID] = nil
	return box
}

// QueueLen returns the number of messages awaiting flush.
func (b *Bus) QueueLen() int {
	return len(b.pending)
}

// MailboxLen returns the number of delivered, unconsumed messages for an agent.
func (b *Bus) MailboxLen(agentID string) int {
	return len(b.mailboxes[agentID])
}

// Reset discards all queued and delivered messages, publish counters, and
// subscriptions. Callers re-subscribe their agents afterwards.
func (b *Bus) Reset() {
	b.pending = nil
	b.mailboxes = make(map[string][]Message)
	b.seq = make(map[string]uint64)
}

// Stats summarizes bus occupancy for monitoring.
func (b *Bus) Stats() map[string]any {
	queued := 0
	for _, box := range b.mailboxes {
		queued += len(box)
	}
	return map[string]any{
		"subscribers":  len(b.mailboxes),
		"pending":      len(b.pending),
		"in_mailboxes": queued,
		"mailbox_size": b.mailboxSize,
	}
}

func (b *Bus) subscriberIDs() []string {
	ids := make([]string, 0, len(b.mailboxes))
	for id := range b.mailboxes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

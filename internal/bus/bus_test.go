package bus

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDoesNotDeliverSameTick(t *testing.T) {
	b := New(0)
	b.Subscribe("warehouse-1")

	b.Publish("store-1", "warehouse-1", 1, OrderRequest{
		OrderID: "o1", ProductID: "widget", Quantity: 5, Requester: "store-1",
	})

	assert.Equal(t, 0, b.MailboxLen("warehouse-1"), "message must not appear before flush")
	assert.Equal(t, 1, b.QueueLen())

	drops := b.Flush()
	assert.Empty(t, drops)
	assert.Equal(t, 1, b.MailboxLen("warehouse-1"))
	assert.Equal(t, 0, b.QueueLen())
}

func TestDrainReturnsFIFO(t *testing.T) {
	b := New(0)
	b.Subscribe("w")

	for i := 0; i < 3; i++ {
		b.Publish("s", "w", 1, OrderRequest{OrderID: fmt.Sprintf("o%d", i), ProductID: "p", Quantity: 1, Requester: "s"})
	}
	b.Flush()

	msgs := b.Drain("w")
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, fmt.Sprintf("o%d", i), msg.Payload.(OrderRequest).OrderID)
	}
	assert.Empty(t, b.Drain("w"), "drain empties the mailbox")
}

func TestBroadcastFansOutExceptSender(t *testing.T) {
	b := New(0)
	b.Subscribe("a")
	b.Subscribe("b")
	b.Subscribe("c")

	b.Publish("a", Broadcast, 2, TruckAvailable{TruckID: "truck-1"})
	b.Flush()

	assert.Equal(t, 0, b.MailboxLen("a"), "sender must not receive its own broadcast")
	assert.Equal(t, 1, b.MailboxLen("b"))
	assert.Equal(t, 1, b.MailboxLen("c"))
}

func TestUnknownRecipientDropped(t *testing.T) {
	b := New(0)
	b.Subscribe("known")

	b.Publish("known", "nobody", 1, TruckAvailable{TruckID: "t"})
	drops := b.Flush()

	require.Len(t, drops, 1)
	assert.Equal(t, "unknown recipient", drops[0].Reason)
	assert.Equal(t, "nobody", drops[0].Message.Recipient)
}

func TestMailboxOverflowDropsOldest(t *testing.T) {
	b := New(3)
	b.Subscribe("w")

	for i := 0; i < 5; i++ {
		b.Publish("s", "w", 1, OrderRequest{OrderID: fmt.Sprintf("o%d", i), ProductID: "p", Quantity: 1, Requester: "s"})
	}
	drops := b.Flush()

	require.Len(t, drops, 2)
	assert.Equal(t, "mailbox overflow", drops[0].Reason)
	assert.Equal(t, "o0", drops[0].Message.Payload.(OrderRequest).OrderID)
	assert.Equal(t, "o1", drops[1].Message.Payload.(OrderRequest).OrderID)

	msgs := b.Drain("w")
	require.Len(t, msgs, 3)
	assert.Equal(t, "o2", msgs[0].Payload.(OrderRequest).OrderID)
	assert.Equal(t, "o4", msgs[2].Payload.(OrderRequest).OrderID)
}

func TestMessageIDsDeterministic(t *testing.T) {
	ids := func() []string {
		b := New(0)
		b.Subscribe("w")
		var out []string
		for i := 0; i < 3; i++ {
			msg := b.Publish("s", "w", uint64(i), TruckAvailable{TruckID: "t"})
			out = append(out, msg.ID)
		}
		return out
	}

	first := ids()
	second := ids()
	assert.Equal(t, first, second, "identical publish sequences must yield identical ids")
	assert.Equal(t, "s/0/1", first[0])
}

func TestResetClearsEverything(t *testing.T) {
	b := New(0)
	b.Subscribe("w")
	b.Publish("s", "w", 1, TruckAvailable{TruckID: "t"})
	b.Flush()
	b.Publish("s", "w", 2, TruckAvailable{TruckID: "t"})

	b.Reset()

	assert.Equal(t, 0, b.QueueLen())
	assert.Equal(t, 0, b.MailboxLen("w"))

	// Publish counters restart, so ids repeat after reset.
	b.Subscribe("w")
	msg := b.Publish("s", "w", 1, TruckAvailable{TruckID: "t"})
	assert.Equal(t, "s/1/1", msg.ID)
}

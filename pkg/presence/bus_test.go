package presence

import "testing"

func TestBusPushLenDrainOrder(t *testing.T) {
	bus := NewBus()
	bus.Push(Message{Recipient: 1})
	bus.Push(Message{Recipient: 2})
	bus.Push(Message{Recipient: 3})

	if bus.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", bus.Len())
	}

	rng := NewRNG(1)
	stats := NewStats()
	var got []NodeId
	bus.Drain(rng, stats, func(msg Message) {
		got = append(got, msg.Recipient)
	})

	if bus.Len() != 0 {
		t.Fatalf("Len() after Drain = %d, want 0", bus.Len())
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("Drain delivered %v, want FIFO [1 2 3] (minus drops)", got)
	}
}

// TestBusDrainDeliversMessagesEnqueuedMidDrain exercises the property that a
// handler enqueuing a new message during Drain sees it delivered in the same
// call, not left for a later Drain.
func TestBusDrainDeliversMessagesEnqueuedMidDrain(t *testing.T) {
	bus := NewBus()
	bus.Push(Message{Recipient: 1, GossipId: 1})

	rng := NewRNG(1)
	stats := NewStats()
	delivered := 0
	bus.Drain(rng, stats, func(msg Message) {
		delivered++
		if msg.GossipId == 1 {
			bus.Push(Message{Recipient: 2, GossipId: 2})
		}
	})

	if delivered != 2 {
		t.Fatalf("delivered %d messages, want 2 (including the one pushed mid-drain)", delivered)
	}
	if bus.Len() != 0 {
		t.Fatalf("Len() after Drain = %d, want 0", bus.Len())
	}
}

func TestBusDropRateNear5Percent(t *testing.T) {
	const n = 200000
	bus := NewBus()
	for i := 0; i < n; i++ {
		bus.Push(Message{Recipient: NodeId(i)})
	}

	rng := NewRNG(42)
	stats := NewStats()
	delivered := 0
	bus.Drain(rng, stats, func(Message) { delivered++ })

	dropped := int(stats.MessagesDropped)
	if delivered+dropped != n {
		t.Fatalf("delivered(%d)+dropped(%d) = %d, want %d", delivered, dropped, delivered+dropped, n)
	}

	rate := float64(dropped) / float64(n)
	if rate < 0.04 || rate > 0.06 {
		t.Fatalf("drop rate = %.4f, want close to 0.05", rate)
	}
}

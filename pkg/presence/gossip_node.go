package presence

// gossipCycleLimit caps how many GOSSIP messages a node will forward in a
// single cycle, which is also what guarantees a bus Drain always
// terminates: each handleMessage call either declines to forward (rate
// limited) or forwards exactly one message, so no cycle can fan out
// indefinitely.
const gossipCycleLimit = 5

// GossipNode implements the gossip-flood protocol on top of Node: every
// minute it floods two random observers with a fresh gossip cycle; on
// receipt, a node tentatively marks every buddy OFFLINE at the start of a
// new cycle (correcting lagging liveness), then marks every buddy ONLINE
// and forwards once more. Ported from original_source/Client.h's
// GossipClient, structured in the idiomatic-Go shape of
// other_examples/arya-analytics-aspen__gossip.go (small methods over a
// shared peer map rather than one long handler).
type GossipNode struct {
	rng *RNG

	lastGossipId          uint32
	messagesSentThisCycle uint32
	gossipedNodes         NodeSet

	// bugCompat reproduces the original's documented oddity in runTasks:
	// the second random peer is drawn from len(observers) but indexed into
	// buddies. Default false (fixed: draw and index against observers).
	bugCompat bool
}

func NewGossipNode(rng *RNG, bugCompat bool) *GossipNode {
	return &GossipNode{
		rng:           rng,
		gossipedNodes: NewNodeSet(),
		bugCompat:     bugCompat,
	}
}

// runTasks starts a new gossip cycle: pick two random observers and flood
// them with a chain containing only this node. A node with no observers
// (never chosen as anyone's buddy) has nobody to flood and sits this cycle
// out.
func (g *GossipNode) runTasks(n *Node, t Tick, bus *Bus, stats *Stats) {
	if len(n.observers) == 0 {
		return
	}

	g.lastGossipId = uint32(t)
	g.gossipedNodes = NewNodeSet()
	g.messagesSentThisCycle = 2

	o1 := g.randomObserver(n)
	o2 := g.randomSecondPeer(n, o1)

	chain := NewNodeSet(n.Id)
	bus.Push(n.createMessage(n.observers[o1], Gossip, t, uint32(t), chain))
	bus.Push(n.createMessage(n.observers[o2], Gossip, t, uint32(t), chain))
}

// randomObserver draws a random index into observers, excluding self by
// rejection sampling (observers never legitimately contains self, but the
// original guards it anyway and this preserves that defensiveness).
func (g *GossipNode) randomObserver(n *Node) int {
	idx := g.rng.Intn(len(n.observers))
	for n.observers[idx] == n.Id {
		idx = g.rng.Intn(len(n.observers))
	}
	return idx
}

// randomSecondPeer draws the second gossip target. In bug-compat mode this
// reproduces the original's index-space mismatch: the index is drawn from
// len(observers), but its rejection-sample check looks it up in buddies and
// any redraw is sized against buddies. The original C++ applies that
// confused index directly and can read out of bounds when the two lists
// differ in length; here the final index is folded back into the observers
// range with a modulo rather than reproducing an out-of-bounds read, so the
// peer flooded is always an observer. The fixed default draws and indexes
// against observers throughout, like first.
//
// With fewer than two candidates to choose from, there is no distinct second
// peer to reject into; the node simply floods the same peer twice rather
// than spinning forever looking for one that doesn't exist.
func (g *GossipNode) randomSecondPeer(n *Node, first int) int {
	if len(n.observers) < 2 {
		return first
	}
	if g.bugCompat && len(n.buddies) > 0 {
		if len(n.buddies) < 2 {
			return first
		}
		idx := g.rng.Intn(len(n.observers))
		for n.buddies[idx%len(n.buddies)] == n.Id || idx == first {
			idx = g.rng.Intn(len(n.buddies))
		}
		return idx % len(n.observers)
	}
	idx := g.rng.Intn(len(n.observers))
	for n.observers[idx] == n.Id || idx == first {
		idx = g.rng.Intn(len(n.observers))
	}
	return idx
}

// handleMessage merges a forwarded gossip chain into this node's view. On
// a new cycle every buddy is tentatively marked OFFLINE (correcting lag).
// Once the per-cycle limit has been reached the message is otherwise
// ignored; below it, the gossip marks every buddy ONLINE again and the
// chain is forwarded to one more random observer.
func (g *GossipNode) handleMessage(n *Node, msg Message, bus *Bus, stats *Stats) {
	if msg.GossipId != g.lastGossipId {
		g.gossipedNodes = NewNodeSet()
		g.messagesSentThisCycle = 0
		g.lastGossipId = msg.GossipId

		for id := range n.buddyState {
			if stats.LastState(id) == Offline {
				stats.IncrementPresenceUpdates()
				delta := msg.Timestamp - stats.LastStateSwitch(msg.Sender)
				stats.AddConvergenceTime(delta)
			}
			n.buddyState[id] = Offline
		}
	}

	if g.messagesSentThisCycle >= gossipCycleLimit {
		return
	}

	g.gossipedNodes.Union(msg.Chain)

	for id := range n.buddyState {
		if n.buddyState[id] != Online && stats.LastState(id) == Online {
			stats.IncrementPresenceUpdates()
			delta := msg.Timestamp - stats.LastStateSwitch(msg.Sender)
			stats.AddConvergenceTime(delta)
		}
		n.buddyState[id] = Online
	}

	if len(n.observers) == 0 {
		return
	}

	chain := msg.Chain.Clone()
	chain.Add(n.Id)

	target := g.randomObserver(n)
	bus.Push(n.createMessage(n.observers[target], Gossip, msg.Timestamp, msg.GossipId, chain))
	g.messagesSentThisCycle++
}

package presence

// protocol is the per-node behavior contract spec.md §9 asks to re-express
// as a shared interface over a common data struct rather than a classical
// base/derived class pair. GossipNode and HeartbeatNode are the two
// implementations; which one a given Node runs is fixed at construction
// (protocol choice is per-run and monomorphic, so a tagged variant chosen
// once at Simulator.New time is simplest).
type protocol interface {
	runTasks(n *Node, t Tick, bus *Bus, stats *Stats)
	handleMessage(n *Node, msg Message, bus *Bus, stats *Stats)
}

// Node is the shared per-node view: buddies (peers this node watches),
// observers (peers watching this node, the destination of outbound
// protocol traffic), and the believed state of each buddy. Adapted from
// the teacher's pkg/node/node.go (a struct bundling a store, ring and
// gossip handle behind one constructor) and pkg/gossip/memberlist.go's
// Member/MemberList shape for the ordered-list-plus-set bookkeeping.
type Node struct {
	Id                NodeId
	TargetBuddyCount  uint32
	SleepPeriod       Tick
	State             State

	buddies   []NodeId
	buddySet  NodeSet
	observers []NodeId
	observerSet NodeSet

	buddyState map[NodeId]State

	proto protocol
}

func newNode(id NodeId, buddyCount uint32, initialState State, initialSleep Tick, proto protocol) *Node {
	return &Node{
		Id:               id,
		TargetBuddyCount: buddyCount,
		SleepPeriod:      initialSleep,
		State:            initialState,
		buddySet:         NewNodeSet(),
		observerSet:      NewNodeSet(),
		buddyState:       make(map[NodeId]State),
		proto:            proto,
	}
}

// switchState toggles the node's local state and returns the new value.
// This is a pure local effect; the owning Simulator is responsible for
// truth-table, stats and schedule bookkeeping (switchClientState).
func (n *Node) switchState(Tick) State {
	if n.State == Online {
		n.State = Offline
	} else {
		n.State = Online
	}
	return n.State
}

// addBuddy rejects self and duplicates, otherwise records id as a buddy
// with its seed believed state and returns true.
func (n *Node) addBuddy(id NodeId, state State) bool {
	if id == n.Id || n.buddySet.Has(id) {
		return false
	}
	n.buddies = append(n.buddies, id)
	n.buddySet.Add(id)
	n.buddyState[id] = state
	return true
}

// addObserver rejects self and duplicates, otherwise records id as an
// observer and returns true.
func (n *Node) addObserver(id NodeId) bool {
	if id == n.Id || n.observerSet.Has(id) {
		return false
	}
	n.observers = append(n.observers, id)
	n.observerSet.Add(id)
	return true
}

func (n *Node) isOnline() bool {
	return n.State == Online
}

func (n *Node) Buddies() []NodeId {
	return n.buddies
}

func (n *Node) Observers() []NodeId {
	return n.observers
}

func (n *Node) BuddyState(id NodeId) State {
	return n.buddyState[id]
}

// createMessage populates a Message with sender set to this node's id, per
// spec.md §4.2's createMessage helper.
func (n *Node) createMessage(recipient NodeId, kind MessageKind, t Tick, gossipId uint32, chain NodeSet) Message {
	return Message{
		Recipient: recipient,
		Sender:    n.Id,
		Timestamp: t,
		GossipId:  gossipId,
		Kind:      kind,
		Chain:     chain,
	}
}

// runTasks dispatches to the node's protocol, a no-op while OFFLINE.
func (n *Node) runTasks(t Tick, bus *Bus, stats *Stats) {
	if !n.isOnline() {
		return
	}
	n.proto.runTasks(n, t, bus, stats)
}

// handleMessage dispatches to the node's protocol, a no-op while OFFLINE.
func (n *Node) handleMessage(msg Message, bus *Bus, stats *Stats) {
	if !n.isOnline() {
		return
	}
	n.proto.handleMessage(n, msg, bus, stats)
}

// VerifyState compares every buddy_state entry against the truth table,
// incrementing the total/correct buddy record counters in stats. Called
// once per node at the end of the convergence phase.
func (n *Node) VerifyState(truth map[NodeId]State, stats *Stats) {
	for id, believed := range n.buddyState {
		stats.IncrementTotalBuddyRecords()
		if truth[id] == believed {
			stats.IncrementTotalCorrectBuddyRecords()
		}
	}
}

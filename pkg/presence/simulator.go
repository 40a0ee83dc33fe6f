package presence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dvorne/presencesim/internal/telemetry"
)

// Protocol selects which dissemination protocol a Simulator runs. Protocol
// choice is per-run and monomorphic, so it is fixed once at construction
// (spec.md §9's "tagged variant" design note) rather than mixed per node.
type Protocol uint8

const (
	ProtocolGossip Protocol = iota
	ProtocolHeartbeat
)

func (p Protocol) String() string {
	if p == ProtocolGossip {
		return "gossip"
	}
	return "heartbeat"
}

// convergence window lengths, per spec.md §4.1.
const (
	gossipConvergenceSeconds    = 1200
	heartbeatConvergenceSeconds = 2200

	initialWakeMax = 4000
	wakeDeltaMin   = 1
	wakeDeltaMax   = 4000
)

// Config gathers the construction parameters spec.md §6 exposes as CLI
// flags in a production reimplementation.
type Config struct {
	Protocol Protocol
	Nodes    uint32
	Buddies  uint32
	Seconds  Tick
	Seed     int64
	// BugCompat reproduces the documented observers/buddies index mismatch
	// in GossipNode.runTasks (spec.md §9). Ignored for heartbeat runs.
	BugCompat bool
}

// Validate rejects the configuration errors spec.md §7 names: zero nodes,
// zero buddies, buddy count at or above node count, and zero duration.
func (c Config) Validate() error {
	if c.Nodes == 0 {
		return fmt.Errorf("presence: nodes must be > 0")
	}
	if c.Buddies == 0 {
		return fmt.Errorf("presence: buddies must be > 0")
	}
	if c.Buddies >= c.Nodes {
		return fmt.Errorf("presence: buddies (%d) must be < nodes (%d)", c.Buddies, c.Nodes)
	}
	if c.Seconds == 0 {
		return fmt.Errorf("presence: seconds must be > 0")
	}
	return nil
}

// Simulator owns every node, the bus, the sleep schedule, the stats and the
// truth table, and drives the main loop plus the post-run convergence
// phase. Ported algorithmically from original_source/ClientSimulator.h;
// its staged, logged construction mirrors the teacher's cmd/server/main.go
// boot sequence (store → ring → peers → ... each step logged before the
// next begins).
type Simulator struct {
	cfg Config
	rng *RNG
	log *zap.Logger

	nodes []*Node
	bus   *Bus
	sched *Schedule
	stats *Stats

	truth   map[NodeId]State
	online  NodeSet
	offline NodeSet
}

// New constructs a Simulator: draws each node's initial state and wake
// time, then wires each node's buddy list (and the corresponding observer
// edges) per spec.md §4.1 step 3.
//
// New only enforces the structural preconditions construction itself
// depends on (nodes > 0, 0 < buddies < nodes) — it does not reject
// Seconds == 0, since a zero-length main phase immediately followed by the
// post-run convergence phase is itself a valid, useful configuration (see
// spec.md §8 scenarios S1/S4). cmd/presencesim calls Config.Validate, which
// additionally rejects Seconds == 0 for interactive/production use, before
// ever calling New.
func New(cfg Config, rng *RNG, log *zap.Logger) (*Simulator, error) {
	if cfg.Nodes == 0 {
		return nil, fmt.Errorf("presence: nodes must be > 0")
	}
	if cfg.Buddies == 0 {
		return nil, fmt.Errorf("presence: buddies must be > 0")
	}
	if cfg.Buddies >= cfg.Nodes {
		return nil, fmt.Errorf("presence: buddies (%d) must be < nodes (%d)", cfg.Buddies, cfg.Nodes)
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Simulator{
		cfg:     cfg,
		rng:     rng,
		log:     log,
		nodes:   make([]*Node, cfg.Nodes),
		bus:     NewBus(),
		sched:   NewSchedule(),
		stats:   NewStats(),
		truth:   make(map[NodeId]State, cfg.Nodes),
		online:  NewNodeSet(),
		offline: NewNodeSet(),
	}

	log.Info("initializing nodes", zap.Uint32("nodes", cfg.Nodes), zap.Uint32("buddies", cfg.Buddies), zap.String("protocol", cfg.Protocol.String()))
	for i := uint32(0); i < cfg.Nodes; i++ {
		id := NodeId(i)
		initialState := Online
		if !rng.Bool() {
			initialState = Offline
		}
		initialWake := rng.Tick(initialWakeMax)

		s.nodes[id] = s.newProtocolNode(id, cfg.Buddies, initialState, initialWake)
		s.sched.Insert(initialWake, id)

		s.stats.AddStateSwitch(id, 0, initialState)
		s.truth[id] = initialState
		if initialState == Online {
			s.online.Add(id)
		} else {
			s.offline.Add(id)
		}

		if i > 0 && i%100 == 0 {
			log.Debug("node construction progress", zap.Uint32("constructed", i))
		}
	}

	log.Info("generating buddy lists")
	for j := uint32(0); j < cfg.Nodes; j++ {
		node := s.nodes[j]
		for uint32(len(node.Buddies())) < cfg.Buddies {
			b := rng.NodeId(cfg.Nodes)
			if node.addBuddy(b, s.nodes[b].State) {
				s.nodes[b].addObserver(NodeId(j))
			}
		}
		if j > 0 && j%100 == 0 {
			log.Debug("buddy list wiring progress", zap.Uint32("wired", j))
		}
	}
	log.Info("construction complete")

	return s, nil
}

func (s *Simulator) newProtocolNode(id NodeId, buddyCount uint32, state State, wake Tick) *Node {
	var proto protocol
	switch s.cfg.Protocol {
	case ProtocolGossip:
		proto = NewGossipNode(s.rng, s.cfg.BugCompat)
	case ProtocolHeartbeat:
		proto = NewHeartbeatNode()
	}
	return newNode(id, buddyCount, state, wake, proto)
}

// Stats exposes the live counters, e.g. for a telemetry mirror.
func (s *Simulator) Stats() *Stats { return s.stats }

// TelemetrySnapshot captures the live counters at t for mirroring into
// internal/telemetry's Prometheus gauges while a long run is still in
// progress.
func (s *Simulator) TelemetrySnapshot(t Tick) telemetry.Snapshot {
	return telemetry.Snapshot{
		PresenceUpdates: s.stats.PresenceUpdates,
		MessagesSent:    s.stats.MessagesSent,
		MessagesDropped: s.stats.MessagesDropped,
		SecondsElapsed:  uint32(t),
		Accuracy:        s.stats.AccuracyRate(),
	}
}

// switchClientState flips a node's state, schedules its next wake, and
// updates the truth table, online/offline sets and stats — the bookkeeping
// spec.md §4.1 assigns to the simulator rather than the node itself.
func (s *Simulator) switchClientState(id NodeId, t Tick) {
	node := s.nodes[id]
	newState := node.switchState(t)

	delta := s.rng.TickRange(wakeDeltaMin, wakeDeltaMax)
	s.sched.Insert(t+delta, id)
	s.stats.AddSleepTime(delta)
	s.stats.IncrementSleepStates()

	s.truth[id] = newState
	if newState == Online {
		delete(s.offline, id)
		s.online.Add(id)
	} else {
		delete(s.online, id)
		s.offline.Add(id)
	}
	s.stats.AddStateSwitch(id, t, newState)
}

// dispatchPendingMessages drains the bus fully, including messages pushed
// by handlers during the drain.
func (s *Simulator) dispatchPendingMessages() {
	s.bus.Drain(s.rng, s.stats, func(msg Message) {
		s.nodes[msg.Recipient].handleMessage(msg, s.bus, s.stats)
	})
}

// processWakes flips every node scheduled to wake at t, then discards the
// now-stale t-1 entry. Wakes are a NodeSet (map), and switchClientState
// draws from the shared RNG, so this walks s.nodes in id order and tests
// membership rather than ranging the map directly — Go's randomized map
// iteration order would otherwise reorder RNG draws across runs and break
// determinism for an identical seed.
func (s *Simulator) processWakes(t Tick) {
	due := s.sched.At(t)
	for _, node := range s.nodes {
		if due.Has(node.Id) {
			s.switchClientState(node.Id, t)
		}
	}
	s.sched.Discard(t - 1)
}

// Run executes the main loop for cfg.Seconds virtual seconds followed by
// the post-run convergence phase, returning the two Reports spec.md §6
// calls for (end of main phase, end of convergence).
func (s *Simulator) Run() (main Report, converged Report) {
	switch s.cfg.Protocol {
	case ProtocolGossip:
		s.runGossipMain()
	case ProtocolHeartbeat:
		s.runHeartbeatMain()
	}
	main = s.report(s.cfg.Seconds)

	s.log.Info("main phase complete", zap.Uint32("seconds", uint32(s.cfg.Seconds)),
		zap.Uint32("messagesSent", s.stats.MessagesSent), zap.Uint32("messagesDropped", s.stats.MessagesDropped))

	end := s.runConvergence()
	converged = s.reportConverged()
	telemetry.Observe(s.TelemetrySnapshot(end))

	s.log.Info("convergence phase complete", zap.Float64("accuracy", converged.AccuracyRate))
	return main, converged
}

// runGossipMain implements spec.md §4.1's gossip main loop: every 60
// seconds run tasks on every ONLINE node then drain the bus, process wakes
// for this tick, discard the stale schedule entry.
func (s *Simulator) runGossipMain() {
	for t := Tick(0); t < s.cfg.Seconds; t++ {
		if t%60 == 0 {
			s.runTasksOnline(t)
			s.dispatchPendingMessages()
		}
		s.processWakes(t)
		s.logProgress(t)
	}
}

// runHeartbeatMain implements spec.md §4.1's heartbeat main loop: for each
// node in id order, if ONLINE, run its tasks then drain the bus
// immediately (a per-node drain, not per-tick), modelling a tight polling
// loop where a forwarded heartbeat is delivered before the next node runs.
func (s *Simulator) runHeartbeatMain() {
	for t := Tick(0); t < s.cfg.Seconds; t++ {
		for _, node := range s.nodes {
			if !node.isOnline() {
				continue
			}
			node.runTasks(t, s.bus, s.stats)
			s.dispatchPendingMessages()
		}
		s.processWakes(t)
		s.logProgress(t)
	}
}

func (s *Simulator) logProgress(t Tick) {
	if t > 0 && t%10000 == 0 {
		s.log.Info("simulation progress", zap.Uint32("secondsElapsed", uint32(t)))
		telemetry.Observe(s.TelemetrySnapshot(t))
	}
}

// runTasksOnline runs every ONLINE node's protocol tasks in id order. s.online
// is a NodeSet (map); ranging it directly would let Go's randomized map
// iteration reorder the shared RNG's draws between runs of the same seed, so
// this walks s.nodes in id order and tests membership instead.
func (s *Simulator) runTasksOnline(t Tick) {
	for _, node := range s.nodes {
		if s.online.Has(node.Id) {
			node.runTasks(t, s.bus, s.stats)
		}
	}
}

// runConvergence forces every OFFLINE node ONLINE, then runs the
// protocol-specific convergence window without ever consulting the sleep
// schedule (spec.md §9 design choice (a)) — switchClientState still
// inserts a wake as it always does, but nothing in this phase looks the
// schedule up again.
func (s *Simulator) runConvergence() Tick {
	t := s.cfg.Seconds

	// s.offline is a NodeSet (map); switchClientState draws from the shared
	// RNG, so forcing nodes online walks s.nodes in id order and tests
	// membership rather than ranging the map, for the same determinism
	// reason as runTasksOnline/processWakes above.
	for _, node := range s.nodes {
		if s.offline.Has(node.Id) {
			s.switchClientState(node.Id, t)
		}
	}

	var span Tick
	switch s.cfg.Protocol {
	case ProtocolGossip:
		span = gossipConvergenceSeconds
	case ProtocolHeartbeat:
		span = heartbeatConvergenceSeconds
	}

	end := t + span
	for ; t < end; t++ {
		switch s.cfg.Protocol {
		case ProtocolGossip:
			if t%60 == 0 {
				s.runTasksOnline(t)
				s.dispatchPendingMessages()
			}
		case ProtocolHeartbeat:
			for _, node := range s.nodes {
				node.runTasks(t, s.bus, s.stats)
				s.dispatchPendingMessages()
			}
		}
		if t%100 == 0 {
			s.log.Debug("convergence progress", zap.Uint32("secondsElapsed", uint32(t)))
		}
	}

	for _, node := range s.nodes {
		node.VerifyState(s.truth, s.stats)
	}
	return t
}

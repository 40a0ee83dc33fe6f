package presence

// Stats accumulates the monotonically increasing counters spec.md calls for,
// plus the per-node "last known" state/switch-time used both by protocol
// logic (to recognize a convergence sample) and by the final report. It is
// mutated only from the single simulation goroutine, so unlike the
// teacher's concurrently-accessed kv.Store it carries no mutex.
type Stats struct {
	PresenceUpdates       uint32
	MessagesSent          uint32
	MessagesDropped       uint32
	TotalConvergenceTime  uint64
	TotalSleepTime        uint64
	SleepStates           uint32
	TotalBuddyRecords     uint32
	TotalCorrectBuddyRecs uint32

	lastState    map[NodeId]State
	lastSwitchAt map[NodeId]Tick
}

func NewStats() *Stats {
	return &Stats{
		lastState:    make(map[NodeId]State),
		lastSwitchAt: make(map[NodeId]Tick),
	}
}

// AddStateSwitch records the truth-table transition used to compute
// convergence deltas; called by the simulator whenever a node's true state
// changes (including the initial "switch at t=0" on construction).
func (s *Stats) AddStateSwitch(id NodeId, t Tick, st State) {
	s.lastSwitchAt[id] = t
	s.lastState[id] = st
}

// LastStateSwitch returns the virtual second of id's last recorded state
// change, or 0 if none has been recorded yet.
func (s *Stats) LastStateSwitch(id NodeId) Tick {
	return s.lastSwitchAt[id]
}

// LastState returns id's last recorded truth-table state. The zero value of
// State is Online, matching the original's hash_map default-construction
// semantics (an unseen key reads as the zero enumerator).
func (s *Stats) LastState(id NodeId) State {
	return s.lastState[id]
}

func (s *Stats) AddConvergenceTime(delta Tick) {
	s.TotalConvergenceTime += uint64(delta)
}

func (s *Stats) AddSleepTime(d Tick) {
	s.TotalSleepTime += uint64(d)
}

func (s *Stats) IncrementSleepStates() {
	s.SleepStates++
}

func (s *Stats) IncrementPresenceUpdates() {
	s.PresenceUpdates++
}

func (s *Stats) IncrementMessagesSent() {
	s.MessagesSent++
}

func (s *Stats) IncrementMessagesDropped() {
	s.MessagesDropped++
}

func (s *Stats) IncrementTotalBuddyRecords() {
	s.TotalBuddyRecords++
}

func (s *Stats) IncrementTotalCorrectBuddyRecords() {
	s.TotalCorrectBuddyRecs++
}

// AverageConvergenceTime is totalConvergenceTime / presenceUpdates, 0 if no
// presence updates were recorded.
func (s *Stats) AverageConvergenceTime() uint32 {
	if s.PresenceUpdates == 0 {
		return 0
	}
	return uint32(s.TotalConvergenceTime / uint64(s.PresenceUpdates))
}

// AverageSleepTime is totalSleepTime / sleepStates, 0 if none.
func (s *Stats) AverageSleepTime() uint32 {
	if s.SleepStates == 0 {
		return 0
	}
	return uint32(s.TotalSleepTime / uint64(s.SleepStates))
}

// AccuracyRate is correct/total buddy records, 0 if no records exist.
func (s *Stats) AccuracyRate() float64 {
	if s.TotalBuddyRecords == 0 {
		return 0
	}
	return float64(s.TotalCorrectBuddyRecs) / float64(s.TotalBuddyRecords)
}

// MessagesPerSecond is messagesSent / elapsed, 0 if elapsed is 0.
func (s *Stats) MessagesPerSecond(elapsed Tick) float64 {
	if elapsed == 0 {
		return 0
	}
	return float64(s.MessagesSent) / float64(elapsed)
}
